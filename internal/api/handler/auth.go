// Package handler implements the REST endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/vetriapp/vetri-backend/internal/api/response"
	"github.com/vetriapp/vetri-backend/internal/domain"
	"github.com/vetriapp/vetri-backend/internal/security"
	"github.com/vetriapp/vetri-backend/internal/store"
)

var validate = validator.New()

// AuthHandler handles signup and login.
type AuthHandler struct {
	users  *store.UserStore
	tokens *security.Manager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *store.UserStore, tokens *security.Manager) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

// Signup registers a new account and returns a token for it.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		response.InternalError(w, "could not process password")
		return
	}

	user, err := h.users.Create(r.Context(), input.Username, string(hash))
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			response.BadRequest(w, "User already exists")
			return
		}
		response.InternalError(w, "could not create user")
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Username)
	if err != nil {
		response.InternalError(w, "could not issue token")
		return
	}

	response.Created(w, domain.AuthResult{Token: token, Username: user.Username})
}

// Login authenticates an existing account and returns a fresh token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	user, err := h.users.GetByUsername(r.Context(), input.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Unauthorized(w, "invalid credentials")
			return
		}
		response.InternalError(w, "could not look up user")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		response.Unauthorized(w, "invalid credentials")
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Username)
	if err != nil {
		response.InternalError(w, "could not issue token")
		return
	}

	response.OK(w, domain.AuthResult{Token: token, Username: user.Username})
}

// validationMessages flattens validator errors into a field -> message map.
func validationMessages(err error) any {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	messages := make(map[string]string)
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages[e.Field()] = "field is required"
		case "min":
			messages[e.Field()] = "must be at least " + e.Param() + " characters"
		case "max":
			messages[e.Field()] = "must be at most " + e.Param() + " characters"
		case "numeric":
			messages[e.Field()] = "must be a number"
		default:
			messages[e.Field()] = "validation failed on " + e.Tag()
		}
	}
	return messages
}
