package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vetriapp/vetri-backend/internal/api/response"
	"github.com/vetriapp/vetri-backend/internal/domain"
	"github.com/vetriapp/vetri-backend/internal/store"
)

// BudgetHandler handles shared budget CRUD.
type BudgetHandler struct {
	budgets *store.BudgetStore
}

// NewBudgetHandler creates a new budget handler
func NewBudgetHandler(budgets *store.BudgetStore) *BudgetHandler {
	return &BudgetHandler{budgets: budgets}
}

// List returns all shared budgets with their participants.
func (h *BudgetHandler) List(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.budgets.List(r.Context())
	if err != nil {
		response.InternalError(w, "could not list budgets")
		return
	}
	response.OK(w, budgets)
}

// Get returns a single shared budget by id.
func (h *BudgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "invalid id")
		return
	}

	budget, err := h.budgets.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "budget not found")
			return
		}
		response.InternalError(w, "could not load budget")
		return
	}
	response.OK(w, budget)
}

// Create records a new shared budget with its participant set.
func (h *BudgetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.BudgetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	budget, err := h.budgets.Create(r.Context(), input)
	if err != nil {
		response.InternalError(w, "could not create budget")
		return
	}
	response.Created(w, budget)
}

// Update replaces a budget's fields and participant set.
func (h *BudgetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "invalid id")
		return
	}

	var input domain.BudgetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	budget, err := h.budgets.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "budget not found")
			return
		}
		response.InternalError(w, "could not update budget")
		return
	}
	response.OK(w, budget)
}

// Delete removes a budget and its participant rows.
func (h *BudgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "invalid id")
		return
	}

	if err := h.budgets.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "budget not found")
			return
		}
		response.InternalError(w, "could not delete budget")
		return
	}
	response.NoContent(w)
}
