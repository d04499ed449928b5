package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// WriteAck acknowledges a client action.
func WriteAck(conn *websocket.Conn, status string) error {
	return WriteTyped(conn, AckResponse{
		Event:  EventAck,
		Status: status,
	})
}

// WritePong answers a ping.
func WritePong(conn *websocket.Conn) error {
	return WriteTyped(conn, PongResponse{Event: EventPong})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return conn.ReadJSON(v)
}

// ReadRaw reads one message, decodes the envelope for action dispatch, and
// returns the raw bytes for a second action-specific decode.
func ReadRaw(conn *websocket.Conn, envelope *RequestEnvelope) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, envelope); err != nil {
		return nil, err
	}
	return raw, nil
}

// DecodeRaw unmarshals a raw message into an action-specific payload.
func DecodeRaw(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}
