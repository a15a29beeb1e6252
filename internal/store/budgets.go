package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/vetriapp/vetri-backend/internal/domain"
)

// BudgetStore manages shared budgets and their participant relation in
// PostgreSQL. Budget and participant writes happen inside one transaction so
// a budget is never visible with a half-written participant list.
type BudgetStore struct {
	db *sql.DB
}

// NewBudgetStore creates a budget store over the given database handle.
func NewBudgetStore(db *sql.DB) *BudgetStore {
	return &BudgetStore{db: db}
}

// Create inserts a budget with its participants and returns the stored record.
func (s *BudgetStore) Create(ctx context.Context, in domain.BudgetInput) (*domain.SharedBudget, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin budget insert: %w", err)
	}
	defer tx.Rollback()

	b := &domain.SharedBudget{
		Name:         in.Name,
		TotalAmount:  in.TotalAmount,
		Participants: in.Participants,
	}

	const insertBudget = `
		INSERT INTO shared_budgets (name, total_amount)
		VALUES ($1, $2)
		RETURNING id, created_at`
	if err := tx.QueryRowContext(ctx, insertBudget, in.Name, in.TotalAmount).Scan(&b.ID, &b.CreatedAt); err != nil {
		return nil, fmt.Errorf("store: insert budget: %w", err)
	}

	if err := insertParticipants(ctx, tx, b.ID, in.Participants); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit budget insert: %w", err)
	}
	return b, nil
}

// List returns all budgets with their participant lists.
func (s *BudgetStore) List(ctx context.Context) ([]domain.SharedBudget, error) {
	const query = `
		SELECT b.id, b.name, b.total_amount, b.created_at,
		       COALESCE(array_agg(p.user_id) FILTER (WHERE p.user_id IS NOT NULL), '{}')
		FROM shared_budgets b
		LEFT JOIN budget_participants p ON p.budget_id = b.id
		GROUP BY b.id
		ORDER BY b.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list budgets: %w", err)
	}
	defer rows.Close()

	budgets := []domain.SharedBudget{}
	for rows.Next() {
		var b domain.SharedBudget
		if err := rows.Scan(&b.ID, &b.Name, &b.TotalAmount, &b.CreatedAt, pq.Array(&b.Participants)); err != nil {
			return nil, fmt.Errorf("store: scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate budgets: %w", err)
	}
	return budgets, nil
}

// Get returns a single budget with participants, or ErrNotFound.
func (s *BudgetStore) Get(ctx context.Context, id int64) (*domain.SharedBudget, error) {
	const query = `
		SELECT b.id, b.name, b.total_amount, b.created_at,
		       COALESCE(array_agg(p.user_id) FILTER (WHERE p.user_id IS NOT NULL), '{}')
		FROM shared_budgets b
		LEFT JOIN budget_participants p ON p.budget_id = b.id
		WHERE b.id = $1
		GROUP BY b.id`

	var b domain.SharedBudget
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&b.ID, &b.Name, &b.TotalAmount, &b.CreatedAt, pq.Array(&b.Participants))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get budget: %w", err)
	}
	return &b, nil
}

// Update replaces a budget's fields and participant list.
func (s *BudgetStore) Update(ctx context.Context, id int64, in domain.BudgetInput) (*domain.SharedBudget, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin budget update: %w", err)
	}
	defer tx.Rollback()

	b := &domain.SharedBudget{
		ID:           id,
		Name:         in.Name,
		TotalAmount:  in.TotalAmount,
		Participants: in.Participants,
	}

	const updateBudget = `
		UPDATE shared_budgets
		SET name = $2, total_amount = $3
		WHERE id = $1
		RETURNING created_at`
	err = tx.QueryRowContext(ctx, updateBudget, id, in.Name, in.TotalAmount).Scan(&b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: update budget: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM budget_participants WHERE budget_id = $1`, id); err != nil {
		return nil, fmt.Errorf("store: clear budget participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, id, in.Participants); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit budget update: %w", err)
	}
	return b, nil
}

// Delete removes a budget; participants go with it via ON DELETE CASCADE.
func (s *BudgetStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shared_budgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete budget: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, budgetID int64, userIDs []int64) error {
	const query = `INSERT INTO budget_participants (budget_id, user_id) VALUES ($1, $2)`
	for _, uid := range userIDs {
		if _, err := tx.ExecContext(ctx, query, budgetID, uid); err != nil {
			return fmt.Errorf("store: insert budget participant: %w", err)
		}
	}
	return nil
}
