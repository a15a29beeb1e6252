package domain

import "time"

// SharedBudget is a pot of money shared between several users.
type SharedBudget struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	TotalAmount  string    `json:"total_amount"`
	Participants []int64   `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// BudgetInput is the payload for creating or updating a shared budget.
// Participants are user ids; unknown ids are rejected by the foreign key.
type BudgetInput struct {
	Name         string  `json:"name" validate:"required,max=200"`
	TotalAmount  string  `json:"total_amount" validate:"required,numeric"`
	Participants []int64 `json:"participants"`
}
