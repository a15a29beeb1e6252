package security

import (
	"context"
	"fmt"

	"github.com/vetriapp/vetri-backend/internal/chat"
	"github.com/vetriapp/vetri-backend/internal/domain"
)

// UserGetter looks up a user by id, typically backed by the user store.
type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Verifier resolves a handshake token into a chat identity. The user is
// re-fetched so tokens for deleted accounts stop working immediately.
type Verifier struct {
	tokens *Manager
	users  UserGetter
}

// NewVerifier creates a Verifier from a token manager and a user lookup.
func NewVerifier(tokens *Manager, users UserGetter) *Verifier {
	return &Verifier{tokens: tokens, users: users}
}

// Verify validates the token and returns the identity it names.
func (v *Verifier) Verify(ctx context.Context, token string) (*chat.Identity, error) {
	claims, err := v.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := v.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("security: verify user: %w", err)
	}

	return &chat.Identity{UserID: user.ID, Username: user.Username}, nil
}
