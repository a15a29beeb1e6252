package domain

import "time"

// Expense is a single spending record owned by a user. Amounts are carried as
// decimal strings end to end so no precision is lost between JSON and the
// NUMERIC column.
type Expense struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Title     string    `json:"title"`
	Amount    string    `json:"amount"`
	Category  string    `json:"category"`
	Shared    bool      `json:"shared"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpenseInput is the payload for creating or updating an expense.
type ExpenseInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Amount   string `json:"amount" validate:"required,numeric"`
	Category string `json:"category" validate:"required,max=100"`
	Shared   bool   `json:"shared"`
}
