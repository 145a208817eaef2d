package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"usos/internal/database"
	"usos/internal/models"
)

// ExpenseRepository handles the append-only expense ledger
type ExpenseRepository struct {
	db database.DBTX
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db database.DBTX) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

const expenseColumns = "id, family_id, paid_by, amount_cents, description, category, spent_at, created_at"

// WithTx returns a copy bound to tx
func (r *ExpenseRepository) WithTx(tx *database.Tx) *ExpenseRepository {
	return &ExpenseRepository{db: tx}
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	var e models.Expense
	if err := row.Scan(&e.ID, &e.FamilyID, &e.PaidBy, &e.Amount.Cents, &e.Description, &e.Category, &e.SpentAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.SpentAt = e.SpentAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// Create appends an expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	query := "INSERT INTO expenses (" + expenseColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		expense.ID, expense.FamilyID, expense.PaidBy, expense.Amount.Cents,
		expense.Description, expense.Category, expense.SpentAt, expense.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetByID retrieves an expense by ID
func (r *ExpenseRepository) GetByID(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := scanExpense(r.db.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", expenseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// ListByFamily returns the family's ledger, newest first
func (r *ExpenseRepository) ListByFamily(ctx context.Context, familyID string) ([]models.Expense, error) {
	query := "SELECT " + expenseColumns + `
		FROM expenses
		WHERE family_id = ?
		ORDER BY spent_at DESC, created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}
