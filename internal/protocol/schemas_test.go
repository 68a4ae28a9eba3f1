package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"openidle.dev/internal/protocol"
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/engine"
	"openidle.dev/internal/sim/tuning"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func validate(t *testing.T, s *jsonschema.Schema, raw []byte) {
	t.Helper()
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validate(t, compile(t, "hello.schema.json"), []byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"bot1"
	}`))

	validate(t, compile(t, "welcome.schema.json"), []byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"5d1f5c0e-8a43-4b7a-9d38-7a2b0f3f1c11",
	  "tick_duration_ms":100,
	  "catalog_digest":"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	  "tick":0
	}`))

	validate(t, compile(t, "cmd.schema.json"), []byte(`{
	  "type":"CMD",
	  "protocol_version":"1.0",
	  "req_id":"R1",
	  "command":{"kind":"toggle_task","id":"beg"}
	}`))

	validate(t, compile(t, "ack.schema.json"), []byte(`{
	  "type":"ACK",
	  "protocol_version":"1.0",
	  "req_id":"R1",
	  "accepted":false,
	  "code":"E_BUSY",
	  "server_tick":12
	}`))

	transfer := compile(t, "save_transfer.schema.json")
	validate(t, transfer, []byte(`{"type":"EXPORT","protocol_version":"1.0"}`))
	validate(t, transfer, []byte(`{"type":"IMPORT","protocol_version":"1.0","save":"e30="}`))
	validate(t, transfer, []byte(`{"type":"IMPORT_RESULT","protocol_version":"1.0","ok":true}`))
}

func TestSchemas_RejectsBadCommand(t *testing.T) {
	s := compile(t, "cmd.schema.json")
	for _, raw := range []string{
		`{"type":"CMD","protocol_version":"1.0","command":{"kind":"advance_time","dt_ms":1000}}`,
		`{"type":"CMD","protocol_version":"1.0","command":{"kind":"load_state"}}`,
		`{"type":"CMD","protocol_version":"1.0"}`,
	} {
		var v any
		_ = json.Unmarshal([]byte(raw), &v)
		if err := s.Validate(v); err == nil {
			t.Fatalf("expected rejection: %s", raw)
		}
	}
}

func TestSchemas_StateFromRepoConfigs(t *testing.T) {
	cfgDir := filepath.Join("..", "..", "configs")
	cats, err := catalogs.Load(cfgDir)
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load(filepath.Join(cfgDir, "tuning.yaml"))
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	r, err := engine.NewReducer(cats, engine.ConfigFromTuning(tune))
	if err != nil {
		t.Fatalf("reducer: %v", err)
	}
	e := engine.New(r, engine.OptionsFromTuning(tune))
	e.Step(nil, 5000)

	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            e.CurrentTick(),
		View:            e.Query().View(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	validate(t, compile(t, "state.schema.json"), raw)

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		TickDurationMs:  e.TickDuration().Milliseconds(),
		CatalogDigest:   cats.Digest,
		Tick:            e.CurrentTick(),
	}
	raw, _ = json.Marshal(welcome)
	validate(t, compile(t, "welcome.schema.json"), raw)

	if tune.ProtocolVersion != protocol.Version {
		t.Fatalf("tuning protocol_version=%q, want %q", tune.ProtocolVersion, protocol.Version)
	}
}
