package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"openidle.dev/internal/protocol"
	"openidle.dev/internal/sim/engine"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "client name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{conn: conn, logger: logger}
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s tick=%d tick_ms=%d catalogs=%.12s", w.SessionID, w.Tick, w.TickDurationMs, w.CatalogDigest)

		case protocol.TypeState:
			var st struct {
				Tick uint64      `json:"tick"`
				View engine.View `json:"view"`
			}
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			b.handleState(st.Tick, &st.View)

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err == nil && !ack.Accepted {
				logger.Printf("ACK %s rejected: %s", ack.ReqID, ack.Code)
			}

		case protocol.TypeError:
			var em protocol.ErrorMsg
			if err := json.Unmarshal(msg, &em); err == nil {
				logger.Printf("ERROR %s: %s", em.Code, em.Message)
			}
		}
	}
}

type bot struct {
	conn   *websocket.Conn
	logger *log.Logger
	seq    int
	logged string
}

// handleState plays greedily: every few ticks it triggers the first
// affordable action, and keeps a task running while slots are free.
func (b *bot) handleState(tick uint64, v *engine.View) {
	if len(v.Log) > 0 && v.Log[0] != b.logged {
		b.logged = v.Log[0]
		b.logger.Printf("tick=%d %s", tick, b.logged)
	}
	if tick%10 != 0 {
		return
	}
	for _, a := range v.Actions {
		if a.Visible && a.Affordable && !a.AtLimit && a.BlockedBy == "" {
			b.send(engine.CmdTriggerAction, a.ID)
			break
		}
	}
	if !v.AtTaskLimit {
		for _, t := range v.Tasks {
			if t.Visible && !t.Active && !t.Rest && !t.Exhausted {
				b.send(engine.CmdToggleTask, t.ID)
				break
			}
		}
	}
}

func (b *bot) send(kind engine.Kind, id string) {
	b.seq++
	cmd := protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ReqID:           fmt.Sprintf("B%d", b.seq),
		Command:         protocol.Command{Kind: string(kind), ID: id},
	}
	_ = b.conn.WriteJSON(cmd)
}
