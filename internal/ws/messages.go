package ws

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Envelope wraps every inbound WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "chat"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// Events pushed to clients.
const (
	// room list socket
	EventNewRoom    = "newRoom"
	EventRemoveRoom = "removeRoom"

	// chat socket
	EventJoin  = "join"
	EventExit  = "exit"
	EventChat  = "chat"
	EventError = "error"
)

const systemUser = "system"

// ──────────────────────────── Request / Response DTOs ─────────────────────────

// ChatRequest is the body for "chat".
type ChatRequest struct {
	Chat string `json:"chat" validate:"required,max=1000"`
}

// ChatAck confirms a stored message to its sender.
type ChatAck struct {
	ID int64 `json:"id"`
}

// SystemBody is the payload of join/exit notices.
type SystemBody struct {
	User string `json:"user"`
	Chat string `json:"chat"`
}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}

type outFrame struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// encode renders an outbound frame; nil means the body could not be encoded.
func encode(event string, body any) []byte {
	b, err := json.Marshal(outFrame{Event: event, Body: body})
	if err != nil {
		zap.L().Error("ws.encode", zap.String("event", event), zap.Error(err))
		return nil
	}
	return b
}
