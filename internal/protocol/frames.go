// Package protocol defines the WebSocket frame formats exchanged with chat
// clients. Inbound frames carry a type discriminator and a nested payload
// object; outbound frames carry a type discriminator and a data value. All
// frames are serialized as JSON text.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client -> Server frame types.
const (
	TypeMessage  = "message"
	TypeTyping   = "typing"
	TypeMarkSeen = "mark_seen"
)

// Server -> Client frame types.
const (
	TypeStatus = "status"
	TypeSeen   = "seen"
	TypeAck    = "ack"
	TypeError  = "error"
	// TypeMessage and TypeTyping are reused on the outbound path.
)

// ---------------------------------------------------------------------------
// Inbound envelope
// ---------------------------------------------------------------------------

// Envelope is the inbound frame shape: {"type": "...", "payload": {...}}.
// The payload is kept raw so it can be decoded into the concrete struct for
// the given type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MessagePayload is the payload of an inbound "message" frame. Empty text is
// allowed; this layer performs no content validation.
type MessagePayload struct {
	Text string `json:"text"`
}

// TypingPayload is the (empty) payload of an inbound "typing" frame.
type TypingPayload struct{}

// MarkSeenPayload is the payload of an inbound "mark_seen" frame.
type MarkSeenPayload struct {
	IDs []int64 `json:"ids"`
}

// DecodeClientFrame parses raw WebSocket bytes into a typed client payload.
// It returns the frame type, the decoded payload struct, and any error. An
// error is returned for malformed JSON, a missing type, an unknown type, or a
// payload that does not decode; callers are expected to drop such frames.
func DecodeClientFrame(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse frame: %w", err)
	}
	if env.Type == "" {
		return "", nil, fmt.Errorf("protocol: missing or empty \"type\" field")
	}

	var (
		payload interface{}
		err     error
	)

	switch env.Type {
	case TypeMessage:
		var p MessagePayload
		if len(env.Payload) > 0 {
			err = json.Unmarshal(env.Payload, &p)
		}
		payload = p
	case TypeTyping:
		payload = TypingPayload{}
	case TypeMarkSeen:
		var p MarkSeenPayload
		if len(env.Payload) > 0 {
			err = json.Unmarshal(env.Payload, &p)
		}
		payload = p
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client frame type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, payload, nil
}

// ---------------------------------------------------------------------------
// Outbound frames
// ---------------------------------------------------------------------------

// StatusData is sent to a newly connected session only.
type StatusData struct {
	Message string `json:"message"`
}

// MessageData is the broadcast form of a persisted chat message. CreatedAt is
// the canonical RFC 3339 text form of the persistence timestamp.
type MessageData struct {
	ID        int64  `json:"id"`
	FromUser  string `json:"from_user"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// TypingData is the broadcast form of a typing indicator.
type TypingData struct {
	FromUser string `json:"from_user"`
}

// SeenData is the broadcast form of a read receipt. IDs are relayed exactly as
// submitted, including ids that matched no stored message.
type SeenData struct {
	IDs []int64 `json:"ids"`
}

// AckData confirms persistence of a message to its sender only.
type AckData struct {
	ID int64 `json:"id"`
}

// serverFrame is the outbound envelope: {"type": "...", "data": ...}. Error
// frames carry a bare string as data.
type serverFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServerFrame encodes an outbound frame of the given type.
func NewServerFrame(frameType string, data interface{}) ([]byte, error) {
	out, err := json.Marshal(serverFrame{Type: frameType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %q frame: %w", frameType, err)
	}
	return out, nil
}
