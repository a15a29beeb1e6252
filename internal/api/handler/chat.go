package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vetriapp/vetri-backend/internal/api/middleware"
	"github.com/vetriapp/vetri-backend/internal/api/response"
	"github.com/vetriapp/vetri-backend/internal/domain"
	"github.com/vetriapp/vetri-backend/internal/store"
)

// recentLimit caps the history window served to clients joining the room.
const recentLimit = 50

// ChatHandler handles the chat message CRUD and history endpoints. Creating a
// message here only persists it; realtime fan-out happens exclusively over
// the WebSocket relay.
type ChatHandler struct {
	messages *store.MessageStore
}

// NewChatHandler creates a new chat handler
func NewChatHandler(messages *store.MessageStore) *ChatHandler {
	return &ChatHandler{messages: messages}
}

// List returns all persisted messages, oldest first.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messages.List(r.Context())
	if err != nil {
		response.InternalError(w, "could not list messages")
		return
	}
	response.OK(w, messages)
}

// Recent returns the newest messages in chronological order, for populating
// the room view on join.
func (h *ChatHandler) Recent(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messages.Recent(r.Context(), recentLimit)
	if err != nil {
		response.InternalError(w, "could not load recent messages")
		return
	}
	response.OK(w, messages)
}

// Get returns a single message by id.
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "invalid id")
		return
	}

	message, err := h.messages.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "message not found")
			return
		}
		response.InternalError(w, "could not load message")
		return
	}
	response.OK(w, message)
}

// Create persists a message attributed to the authenticated user without
// broadcasting it.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsername(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.ChatMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	id, createdAt, err := h.messages.Create(r.Context(), username, input.Text)
	if err != nil {
		response.InternalError(w, "could not create message")
		return
	}

	response.Created(w, domain.ChatMessage{
		ID:        id,
		FromUser:  username,
		Text:      input.Text,
		CreatedAt: createdAt,
	})
}

// UpdateFlags sets the delivered and seen flags on a message.
func (h *ChatHandler) UpdateFlags(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "invalid id")
		return
	}

	var input domain.ChatMessageFlags
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.messages.UpdateFlags(r.Context(), id, input.Delivered, input.Seen); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "message not found")
			return
		}
		response.InternalError(w, "could not update message")
		return
	}

	message, err := h.messages.Get(r.Context(), id)
	if err != nil {
		response.InternalError(w, "could not load message")
		return
	}
	response.OK(w, message)
}

// Delete removes a message.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "invalid id")
		return
	}

	if err := h.messages.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "message not found")
			return
		}
		response.InternalError(w, "could not delete message")
		return
	}
	response.NoContent(w)
}
