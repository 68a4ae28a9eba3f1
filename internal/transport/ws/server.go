package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"openidle.dev/internal/protocol"
	"openidle.dev/internal/sim/engine"
)

type Server struct {
	eng *engine.Engine
	log *log.Logger

	upgrader websocket.Upgrader
	sessions atomic.Int64
}

func NewServer(e *engine.Engine, logger *log.Logger) *Server {
	s := &Server{
		eng: e,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

// Sessions reports the number of connected clients.
func (s *Server) Sessions() int64 { return s.sessions.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, name := s.handshake(conn)
		if sessionID == "" {
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		s.log.Printf("session %s (%s) connected", sessionID, name)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, 16)
		frames := s.eng.Subscribe(sessionID)
		defer s.eng.Unsubscribe(sessionID)

		// State pump. Frames arrive drop-oldest, so a slow client skips ticks.
		go func() {
			for f := range frames {
				msg := protocol.StateMsg{
					Type:            protocol.TypeState,
					ProtocolVersion: protocol.Version,
					Tick:            f.Tick,
					View:            s.eng.Reducer().Query(f.State).View(),
				}
				if !send(ctx, out, msg) {
					return
				}
			}
		}()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				send(ctx, out, errorMsg(protocol.ErrProtoBadRequest, "bad json"))
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				send(ctx, out, errorMsg(protocol.ErrProtoVersion, "bad protocol_version"))
				continue
			}
			if reply := s.route(base.Type, msg); reply != nil {
				if !send(ctx, out, reply) {
					break
				}
			}
		}
		cancel()
		s.log.Printf("session %s disconnected", sessionID)
	}
}

func (s *Server) route(typ string, msg []byte) any {
	switch typ {
	case protocol.TypeCmd:
		var m protocol.CmdMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg(protocol.ErrProtoBadRequest, "bad CMD")
		}
		return s.handleCmd(m)
	case protocol.TypeExport:
		save, err := s.eng.Export()
		if err != nil {
			s.log.Printf("export: %v", err)
			return errorMsg(protocol.ErrInternal, "export failed")
		}
		return protocol.ExportMsg{Type: protocol.TypeExport, ProtocolVersion: protocol.Version, Save: save}
	case protocol.TypeImport:
		var m protocol.ImportMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg(protocol.ErrProtoBadRequest, "bad IMPORT")
		}
		res := protocol.ImportResultMsg{Type: protocol.TypeImportResult, ProtocolVersion: protocol.Version}
		if res.OK = s.eng.Import(m.Save); !res.OK {
			res.Code = protocol.ErrMalformedSave
		}
		return res
	case protocol.TypeBreakdown:
		var m protocol.BreakdownMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg(protocol.ErrProtoBadRequest, "bad BREAKDOWN")
		}
		if !s.eng.Reducer().Catalogs().Resources.Has(m.ResourceID) {
			return errorMsg(protocol.ErrProtoBadRequest, "unknown resource_id")
		}
		b := s.eng.Query().ResourceBreakdown(m.ResourceID)
		return protocol.BreakdownMsg{Type: protocol.TypeBreakdown, ProtocolVersion: protocol.Version, ResourceID: m.ResourceID, Breakdown: b}
	}
	return errorMsg(protocol.ErrProtoBadRequest, "unknown type "+typ)
}

func (s *Server) handleCmd(m protocol.CmdMsg) protocol.AckMsg {
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		ReqID:           m.ReqID,
		ServerTick:      s.eng.CurrentTick(),
	}
	kind := engine.Kind(m.Command.Kind)
	switch {
	case !kind.Valid(), kind == engine.CmdAdvanceTime, kind == engine.CmdLoadState:
		ack.Code = protocol.ErrUnknownCommand
	case !s.eng.Submit(engine.Command{Kind: kind, ID: m.Command.ID}):
		ack.Code = protocol.ErrBusy
	default:
		ack.Accepted = true
	}
	return ack
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID, name string) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", ""
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	sessionID = uuid.NewString()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		TickDurationMs:  s.eng.TickDuration().Milliseconds(),
		CatalogDigest:   s.eng.Reducer().Catalogs().Digest,
		Tick:            s.eng.CurrentTick(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", ""
	}
	return sessionID, hello.ClientName
}

func errorMsg(code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, Code: code, Message: message}
}

// send marshals v onto out, giving up when the session ends.
func send(ctx context.Context, out chan<- []byte, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	select {
	case out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
