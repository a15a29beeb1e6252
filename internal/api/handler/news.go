package handler

import (
	"net/http"

	"github.com/vetriapp/vetri-backend/internal/api/response"
)

// NewsItem is one card on the landing feed.
type NewsItem struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// NewsHandler serves the static landing feed.
type NewsHandler struct{}

// NewNewsHandler creates a new news handler
func NewNewsHandler() *NewsHandler {
	return &NewsHandler{}
}

// staticNews is served until an editorial source exists.
var staticNews = []NewsItem{
	{ID: 1, Title: "Welcome to Vetri", Summary: "Track expenses, split budgets and chat with your group in one place."},
	{ID: 2, Title: "Shared budgets", Summary: "Create a shared budget and invite participants to keep spending in sync."},
	{ID: 3, Title: "Realtime chat", Summary: "The group chat now shows typing and seen indicators in realtime."},
}

// List returns the news feed.
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, staticNews)
}
