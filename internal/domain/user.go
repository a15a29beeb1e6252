// Package domain defines the persistent entities of the Vetri backend and the
// request payloads accepted by its REST API.
package domain

import "time"

// User is a registered account. Passwords are stored as bcrypt hashes and are
// never serialized.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Credentials is the payload for both signup and login.
type Credentials struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
