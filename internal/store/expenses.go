package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vetriapp/vetri-backend/internal/domain"
)

// ExpenseStore manages expense records in PostgreSQL.
type ExpenseStore struct {
	db *sql.DB
}

// NewExpenseStore creates an expense store over the given database handle.
func NewExpenseStore(db *sql.DB) *ExpenseStore {
	return &ExpenseStore{db: db}
}

// Create inserts an expense owned by ownerID and returns the stored record.
func (s *ExpenseStore) Create(ctx context.Context, ownerID int64, in domain.ExpenseInput) (*domain.Expense, error) {
	const query = `
		INSERT INTO expenses (owner_id, title, amount, category, shared)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	e := &domain.Expense{
		OwnerID:  ownerID,
		Title:    in.Title,
		Amount:   in.Amount,
		Category: in.Category,
		Shared:   in.Shared,
	}
	err := s.db.QueryRowContext(ctx, query, ownerID, in.Title, in.Amount, in.Category, in.Shared).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert expense: %w", err)
	}
	return e, nil
}

// List returns all expenses, newest first.
func (s *ExpenseStore) List(ctx context.Context) ([]domain.Expense, error) {
	const query = `
		SELECT id, owner_id, title, amount, category, shared, created_at
		FROM expenses
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []domain.Expense{}
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Amount, &e.Category, &e.Shared, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate expenses: %w", err)
	}
	return expenses, nil
}

// Get returns a single expense by id, or ErrNotFound.
func (s *ExpenseStore) Get(ctx context.Context, id int64) (*domain.Expense, error) {
	const query = `
		SELECT id, owner_id, title, amount, category, shared, created_at
		FROM expenses
		WHERE id = $1`

	var e domain.Expense
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&e.ID, &e.OwnerID, &e.Title, &e.Amount, &e.Category, &e.Shared, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get expense: %w", err)
	}
	return &e, nil
}

// Update replaces the mutable fields of an expense.
func (s *ExpenseStore) Update(ctx context.Context, id int64, in domain.ExpenseInput) (*domain.Expense, error) {
	const query = `
		UPDATE expenses
		SET title = $2, amount = $3, category = $4, shared = $5
		WHERE id = $1
		RETURNING id, owner_id, title, amount, category, shared, created_at`

	var e domain.Expense
	err := s.db.QueryRowContext(ctx, query, id, in.Title, in.Amount, in.Category, in.Shared).
		Scan(&e.ID, &e.OwnerID, &e.Title, &e.Amount, &e.Category, &e.Shared, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: update expense: %w", err)
	}
	return &e, nil
}

// Delete removes an expense by id, or returns ErrNotFound.
func (s *ExpenseStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete expense: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
