package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"usos/internal/database"
	"usos/internal/models"
)

// FamilyRepository handles database operations for families
type FamilyRepository struct {
	db database.DBTX
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// WithTx returns a copy bound to tx
func (r *FamilyRepository) WithTx(tx *database.Tx) *FamilyRepository {
	return &FamilyRepository{db: tx}
}

// Create inserts a family. A taken invite code surfaces as a unique violation.
func (r *FamilyRepository) Create(ctx context.Context, family *models.Family) error {
	query := "INSERT INTO families (id, invite_code, created_at) VALUES (?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, family.ID, family.InviteCode, family.CreatedAt); err != nil {
		return fmt.Errorf("failed to create family: %w", err)
	}
	return nil
}

// GetByID retrieves a family by ID
func (r *FamilyRepository) GetByID(ctx context.Context, familyID string) (*models.Family, error) {
	query := "SELECT id, invite_code, created_at FROM families WHERE id = ?"
	return r.get(ctx, query, familyID)
}

// GetByInviteCode retrieves a family by its (already normalized) invite code
func (r *FamilyRepository) GetByInviteCode(ctx context.Context, code string) (*models.Family, error) {
	query := "SELECT id, invite_code, created_at FROM families WHERE invite_code = ?"
	return r.get(ctx, query, code)
}

func (r *FamilyRepository) get(ctx context.Context, query string, arg any) (*models.Family, error) {
	family := &models.Family{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&family.ID, &family.InviteCode, &family.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	family.CreatedAt = family.CreatedAt.UTC()
	return family, nil
}

// Lock takes a row lock on the family until the surrounding transaction
// ends. Membership changes go through it so member counts stay accurate.
func (r *FamilyRepository) Lock(ctx context.Context, familyID string) (bool, error) {
	var id string
	query := "SELECT id FROM families WHERE id = ?" + r.db.GetDialect().ForUpdate()
	err := r.db.QueryRowContext(ctx, query, familyID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock family: %w", err)
	}
	return true, nil
}

// CountMembers returns how many users belong to the family
func (r *FamilyRepository) CountMembers(ctx context.Context, familyID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE family_id = ?", familyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count family members: %w", err)
	}
	return count, nil
}

// List returns every family, oldest first
func (r *FamilyRepository) List(ctx context.Context) ([]models.Family, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, invite_code, created_at FROM families ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var families []models.Family
	for rows.Next() {
		var family models.Family
		if err := rows.Scan(&family.ID, &family.InviteCode, &family.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		family.CreatedAt = family.CreatedAt.UTC()
		families = append(families, family)
	}
	return families, rows.Err()
}
