package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vetriapp/vetri-backend/internal/api/middleware"
	"github.com/vetriapp/vetri-backend/internal/api/response"
	"github.com/vetriapp/vetri-backend/internal/domain"
	"github.com/vetriapp/vetri-backend/internal/store"
)

// ExpenseHandler handles expense CRUD.
type ExpenseHandler struct {
	expenses *store.ExpenseStore
}

// NewExpenseHandler creates a new expense handler
func NewExpenseHandler(expenses *store.ExpenseStore) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses}
}

// List returns all expenses, newest first.
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.expenses.List(r.Context())
	if err != nil {
		response.InternalError(w, "could not list expenses")
		return
	}
	response.OK(w, expenses)
}

// Get returns a single expense by id.
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "invalid id")
		return
	}

	expense, err := h.expenses.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "expense not found")
			return
		}
		response.InternalError(w, "could not load expense")
		return
	}
	response.OK(w, expense)
}

// Create records a new expense owned by the authenticated user.
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.ExpenseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	expense, err := h.expenses.Create(r.Context(), userID, input)
	if err != nil {
		response.InternalError(w, "could not create expense")
		return
	}
	response.Created(w, expense)
}

// Update replaces the mutable fields of an expense.
func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "invalid id")
		return
	}

	var input domain.ExpenseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	expense, err := h.expenses.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "expense not found")
			return
		}
		response.InternalError(w, "could not update expense")
		return
	}
	response.OK(w, expense)
}

// Delete removes an expense.
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "invalid id")
		return
	}

	if err := h.expenses.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "expense not found")
			return
		}
		response.InternalError(w, "could not delete expense")
		return
	}
	response.NoContent(w)
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
