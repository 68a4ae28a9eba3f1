package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"openidle.dev/internal/protocol"
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/engine"
	"openidle.dev/internal/sim/tuning"
)

func newTestServer(t *testing.T) (*engine.Engine, *httptest.Server) {
	t.Helper()
	cfgDir := filepath.Join("..", "..", "..", "configs")
	cats, err := catalogs.Load(cfgDir)
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune := tuning.Defaults()
	r, err := engine.NewReducer(cats, engine.ConfigFromTuning(tune))
	if err != nil {
		t.Fatalf("reducer: %v", err)
	}
	opts := engine.OptionsFromTuning(tune)
	opts.TickDuration = 10 * time.Millisecond
	opts.AutosaveEveryTicks = 0
	e := engine.New(r, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = e.Run(ctx) }()
	t.Cleanup(cancel)

	srv := httptest.NewServer(NewServer(e, log.New(io.Discard, "", 0)).Handler())
	t.Cleanup(srv.Close)
	return e, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"}); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	var w protocol.WelcomeMsg
	raw := readUntil(t, conn, protocol.TypeWelcome)
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	return w
}

// readUntil skips messages of other types (mostly STATE pushes).
func readUntil(t *testing.T, conn *websocket.Conn, typ string) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", typ, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type == typ {
			return msg
		}
	}
	t.Fatalf("timed out waiting for %s", typ)
	return nil
}

func writeMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestHandshake_Welcome(t *testing.T) {
	e, srv := newTestServer(t)
	conn := dial(t, srv)
	w := hello(t, conn)
	if w.SessionID == "" {
		t.Fatalf("expected session id")
	}
	if w.TickDurationMs != 10 {
		t.Fatalf("tick_duration_ms=%d", w.TickDurationMs)
	}
	if w.CatalogDigest != e.Reducer().Catalogs().Digest {
		t.Fatalf("catalog digest mismatch")
	}

	var st struct {
		View engine.View `json:"view"`
	}
	if err := json.Unmarshal(readUntil(t, conn, protocol.TypeState), &st); err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(st.View.Resources) == 0 {
		t.Fatalf("expected resources in view")
	}
}

func TestHandshake_RejectsBadVersion(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)
	writeMsg(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1", ClientName: "old"})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestCmd_AppliedOnNextTick(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)
	hello(t, conn)

	writeMsg(t, conn, protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ReqID:           "R1",
		Command:         protocol.Command{Kind: "trigger_action", ID: "trash_search"},
	})
	var ack protocol.AckMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeAck), &ack)
	if !ack.Accepted || ack.ReqID != "R1" {
		t.Fatalf("ack=%+v", ack)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var st struct {
			View engine.View `json:"view"`
		}
		_ = json.Unmarshal(readUntil(t, conn, protocol.TypeState), &st)
		for _, a := range st.View.Actions {
			if a.ID == "trash_search" && a.Executions == 1 {
				return
			}
		}
	}
	t.Fatalf("trash_search never executed")
}

func TestCmd_RejectsServerOnlyKinds(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)
	hello(t, conn)

	for _, kind := range []string{"advance_time", "load_state", "fly"} {
		writeMsg(t, conn, protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, Command: protocol.Command{Kind: kind}})
		var ack protocol.AckMsg
		_ = json.Unmarshal(readUntil(t, conn, protocol.TypeAck), &ack)
		if ack.Accepted || ack.Code != protocol.ErrUnknownCommand {
			t.Fatalf("%s: ack=%+v", kind, ack)
		}
	}
}

func TestExportImport(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)
	hello(t, conn)

	writeMsg(t, conn, protocol.ExportMsg{Type: protocol.TypeExport, ProtocolVersion: protocol.Version})
	var exp protocol.ExportMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeExport), &exp)
	if exp.Save == "" {
		t.Fatalf("expected save text")
	}

	writeMsg(t, conn, protocol.ImportMsg{Type: protocol.TypeImport, ProtocolVersion: protocol.Version, Save: exp.Save})
	var res protocol.ImportResultMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeImportResult), &res)
	if !res.OK {
		t.Fatalf("import of fresh export failed: %+v", res)
	}

	writeMsg(t, conn, protocol.ImportMsg{Type: protocol.TypeImport, ProtocolVersion: protocol.Version, Save: "not base64!"})
	res = protocol.ImportResultMsg{}
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeImportResult), &res)
	if res.OK || res.Code != protocol.ErrMalformedSave {
		t.Fatalf("expected malformed save, got %+v", res)
	}
}

func TestBreakdownAndErrors(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)
	hello(t, conn)

	writeMsg(t, conn, protocol.BreakdownMsg{Type: protocol.TypeBreakdown, ProtocolVersion: protocol.Version, ResourceID: "money"})
	var bd struct {
		Breakdown engine.Breakdown `json:"breakdown"`
	}
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeBreakdown), &bd)
	if bd.Breakdown.ResourceID != "money" || bd.Breakdown.Max <= 0 {
		t.Fatalf("breakdown=%+v", bd.Breakdown)
	}

	writeMsg(t, conn, protocol.BreakdownMsg{Type: protocol.TypeBreakdown, ProtocolVersion: protocol.Version, ResourceID: "nope"})
	var em protocol.ErrorMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeError), &em)
	if em.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("error=%+v", em)
	}

	writeMsg(t, conn, map[string]string{"type": "CMD", "protocol_version": "9.9"})
	em = protocol.ErrorMsg{}
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeError), &em)
	if em.Code != protocol.ErrProtoVersion {
		t.Fatalf("error=%+v", em)
	}
}
