package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"usos/internal/database"
	"usos/internal/models"
)

const savingsGoalColumns = "id, family_id, title, target_cents, current_cents, emoji, created_at"

// SavingsGoalRepository handles database operations for savings goals
type SavingsGoalRepository struct {
	db database.DBTX
}

// NewSavingsGoalRepository creates a new savings goal repository
func NewSavingsGoalRepository(db database.DBTX) *SavingsGoalRepository {
	return &SavingsGoalRepository{db: db}
}

// WithTx returns a copy bound to tx
func (r *SavingsGoalRepository) WithTx(tx *database.Tx) *SavingsGoalRepository {
	return &SavingsGoalRepository{db: tx}
}

func scanSavingsGoal(row rowScanner) (*models.SavingsGoal, error) {
	var g models.SavingsGoal
	if err := row.Scan(&g.ID, &g.FamilyID, &g.Title, &g.Target.Cents, &g.Current.Cents, &g.Emoji, &g.CreatedAt); err != nil {
		return nil, err
	}
	g.CreatedAt = g.CreatedAt.UTC()
	return &g, nil
}

// Create inserts a savings goal
func (r *SavingsGoalRepository) Create(ctx context.Context, goal *models.SavingsGoal) error {
	query := "INSERT INTO savings_goals (" + savingsGoalColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		goal.ID, goal.FamilyID, goal.Title, goal.Target.Cents, goal.Current.Cents, goal.Emoji, goal.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create savings goal: %w", err)
	}
	return nil
}

// GetByID retrieves a savings goal by ID
func (r *SavingsGoalRepository) GetByID(ctx context.Context, goalID string) (*models.SavingsGoal, error) {
	goal, err := scanSavingsGoal(r.db.QueryRowContext(ctx, "SELECT "+savingsGoalColumns+" FROM savings_goals WHERE id = ?", goalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get savings goal: %w", err)
	}
	return goal, nil
}

// ListByFamily returns the family's goals, oldest first
func (r *SavingsGoalRepository) ListByFamily(ctx context.Context, familyID string) ([]models.SavingsGoal, error) {
	query := "SELECT " + savingsGoalColumns + " FROM savings_goals WHERE family_id = ? ORDER BY created_at ASC, id ASC"
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query savings goals: %w", err)
	}
	defer rows.Close()

	var goals []models.SavingsGoal
	for rows.Next() {
		goal, err := scanSavingsGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan savings goal: %w", err)
		}
		goals = append(goals, *goal)
	}
	return goals, rows.Err()
}

// AddContribution increments the goal in the database, never in Go, so
// concurrent contributions cannot lose updates. Reports false for an unknown goal.
func (r *SavingsGoalRepository) AddContribution(ctx context.Context, goalID string, cents int64) (bool, error) {
	matched, err := r.db.ExecConditional(ctx,
		"UPDATE savings_goals SET current_cents = current_cents + ? WHERE id = ?", cents, goalID)
	if err != nil {
		return false, fmt.Errorf("failed to add contribution: %w", err)
	}
	return matched, nil
}
