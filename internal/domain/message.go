package domain

import "time"

// ChatMessage is one persisted message in the global chat room. Once inserted,
// from_user, text and created_at never change; only the delivered and seen
// flags are mutable.
type ChatMessage struct {
	ID        int64     `json:"id"`
	FromUser  string    `json:"from_user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Delivered bool      `json:"delivered"`
	Seen      bool      `json:"seen"`
}

// ChatMessageInput is the payload for the administrative message CRUD
// endpoints. The realtime relay persists messages through its own path.
type ChatMessageInput struct {
	Text string `json:"text" validate:"max=4096"`
}

// ChatMessageFlags is the payload for updating the mutable flags of a
// persisted message.
type ChatMessageFlags struct {
	Delivered bool `json:"delivered"`
	Seen      bool `json:"seen"`
}
