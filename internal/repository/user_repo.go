package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"usos/internal/database"
	"usos/internal/models"
)

const userColumns = "id, family_id, email, display_name, partner_id, avatar_color, created_at"

// UserRepository handles database operations for user profiles
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy bound to tx
func (r *UserRepository) WithTx(tx *database.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var familyID, partnerID sql.NullString
	if err := row.Scan(&user.ID, &familyID, &user.Email, &user.DisplayName, &partnerID, &user.AvatarColor, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.FamilyID = nullStringPtr(familyID)
	user.PartnerID = nullStringPtr(partnerID)
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

// Create inserts a user profile
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, family_id, email, display_name, partner_id, avatar_color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, stringPtrArg(user.FamilyID), user.Email, user.DisplayName,
		stringPtrArg(user.PartnerID), user.AvatarColor, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return r.get(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", userID)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.get(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func (r *UserRepository) get(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListByFamily returns the members of a family in joining order
func (r *UserRepository) ListByFamily(ctx context.Context, familyID string) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE family_id = ? ORDER BY created_at ASC, id ASC"
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// AssignFamily sets the user's family only if they have none yet
func (r *UserRepository) AssignFamily(ctx context.Context, userID, familyID string) (bool, error) {
	matched, err := r.db.ExecConditional(ctx,
		"UPDATE users SET family_id = ? WHERE id = ? AND family_id IS NULL", familyID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to assign family: %w", err)
	}
	return matched, nil
}

// SetPartnerIfUnset links userID to partnerID only if userID has no partner
func (r *UserRepository) SetPartnerIfUnset(ctx context.Context, userID, partnerID string) (bool, error) {
	matched, err := r.db.ExecConditional(ctx,
		"UPDATE users SET partner_id = ? WHERE id = ? AND partner_id IS NULL", partnerID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to set partner: %w", err)
	}
	return matched, nil
}

// ForceMembership overwrites family and partner unconditionally. Admin use only.
func (r *UserRepository) ForceMembership(ctx context.Context, userID string, familyID, partnerID *string) (bool, error) {
	matched, err := r.db.ExecConditional(ctx,
		"UPDATE users SET family_id = ?, partner_id = ? WHERE id = ?",
		stringPtrArg(familyID), stringPtrArg(partnerID), userID)
	if err != nil {
		return false, fmt.Errorf("failed to update membership: %w", err)
	}
	return matched, nil
}

// UpdateProfile changes the editable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, userID, displayName, avatarColor string) (bool, error) {
	matched, err := r.db.ExecConditional(ctx,
		"UPDATE users SET display_name = ?, avatar_color = ? WHERE id = ?", displayName, avatarColor, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update profile: %w", err)
	}
	return matched, nil
}

// IsUniqueViolation reports whether err came from a duplicate id or email
func (r *UserRepository) IsUniqueViolation(err error) bool {
	return r.db.IsUniqueViolation(err)
}
