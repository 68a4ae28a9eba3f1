package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	TickDurationMs  int64  `json:"tick_duration_ms"`
	CatalogDigest   string `json:"catalog_digest"`
	Tick            uint64 `json:"tick"`
}

// STATE (server -> client). View is the engine's read model of the game.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	View            any    `json:"view"`
}

// CMD (client -> server). Clients may send every player command; time is
// driven by the server and whole-state loads go through IMPORT.
type CmdMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ReqID           string  `json:"req_id,omitempty"`
	Command         Command `json:"command"`
}

type Command struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// ACK (server -> client) answers a CMD. Accepted means queued for the next
// tick; the outcome shows up in the following STATE.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	ServerTick      uint64 `json:"server_tick"`
}

// EXPORT: sent empty by the client, answered with Save filled in.
type ExportMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Save            string `json:"save,omitempty"`
}

// IMPORT (client -> server)
type ImportMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Save            string `json:"save"`
}

// IMPORT_RESULT (server -> client)
type ImportResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
}

// BREAKDOWN: the client names a resource, the server answers with the
// per-source cap and rate terms for it.
type BreakdownMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ResourceID      string `json:"resource_id"`
	Breakdown       any    `json:"breakdown,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
