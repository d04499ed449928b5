package websocket

import "github.com/vigil-exam/vigil/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSave      Action = "save"
	ActionViolation Action = "violation"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SaveRequest is sent by the client to patch a single question's response.
// Nil patch fields leave the server's entry fields untouched.
type SaveRequest struct {
	Action     Action              `json:"action"`
	QuestionID string              `json:"question_id"`
	Patch      model.ResponsePatch `json:"patch"`
}

// ViolationRequest is sent by the client to report a proctoring violation.
type ViolationRequest struct {
	Action Action              `json:"action"`
	Type   model.ViolationType `json:"type"`
}

// PingRequest keeps the connection alive and doubles as a health probe.
type PingRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventAck   Event = "ack"
	EventPong  Event = "pong"
)

type AckResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
