package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"usos/internal/database"
	"usos/internal/log"
	"usos/internal/models"
	"usos/internal/repository"
)

// BackupVersion is written into every export
const BackupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string               `json:"version"`
	ExportedAt   time.Time            `json:"exported_at"`
	Families     []models.Family      `json:"families"`
	Users        []models.User        `json:"users"`
	JoinRequests []JoinRequestBackup  `json:"join_requests"`
	Expenses     []models.Expense     `json:"expenses"`
	SavingsGoals []models.SavingsGoal `json:"savings_goals"`
}

// JoinRequestBackup is a join request without the requester details
// joined in at read time
type JoinRequestBackup struct {
	ID         string     `json:"id"`
	FamilyID   string     `json:"family_id"`
	UserID     string     `json:"user_id"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
	ResolvedBy *string    `json:"resolved_by"`
}

// Counts returns the number of rows per table
func (b *BackupData) Counts() map[string]int {
	return map[string]int{
		"families":      len(b.Families),
		"users":         len(b.Users),
		"join_requests": len(b.JoinRequests),
		"expenses":      len(b.Expenses),
		"savings_goals": len(b.SavingsGoals),
	}
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db     *database.DB
	admin  *repository.AdminRepository
	logger *log.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, admin *repository.AdminRepository, logger *log.Logger) *BackupService {
	return &BackupService{db: db, admin: admin, logger: logger.WithComponent(log.ComponentAdmin)}
}

// Export reads every table into a BackupData
func (s *BackupService) Export(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:    BackupVersion,
		ExportedAt: time.Now().UTC(),
	}

	steps := []struct {
		name string
		fn   func(context.Context, *BackupData) error
	}{
		{"families", s.exportFamilies},
		{"users", s.exportUsers},
		{"join requests", s.exportJoinRequests},
		{"expenses", s.exportExpenses},
		{"savings goals", s.exportSavingsGoals},
	}
	for _, step := range steps {
		if err := step.fn(ctx, backup); err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", step.name, err)
		}
	}

	s.logger.InfoContext(ctx, "Database exported", "counts", backup.Counts())
	return backup, nil
}

// ExportToWriter writes an indented JSON backup to w
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return backup, nil
}

// ImportFromReader restores a backup. With clear set, existing data is
// deleted first; otherwise rows must not collide with existing ones.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader, clear bool) (*BackupData, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	if clear {
		if _, err := s.admin.ResetAll(ctx); err != nil {
			return nil, err
		}
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		steps := []struct {
			name string
			fn   func(context.Context, *database.Tx, *BackupData) error
		}{
			{"families", importFamilies},
			{"users", importUsers},
			{"join requests", importJoinRequests},
			{"expenses", importExpenses},
			{"savings goals", importSavingsGoals},
		}
		for _, step := range steps {
			if err := step.fn(ctx, tx, &backup); err != nil {
				return fmt.Errorf("failed to import %s: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Database imported",
		"version", backup.Version,
		"exported_at", backup.ExportedAt,
		"counts", backup.Counts())
	return &backup, nil
}

func (s *BackupService) exportFamilies(ctx context.Context, backup *BackupData) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, invite_code, created_at FROM families ORDER BY created_at, id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var f models.Family
		if err := rows.Scan(&f.ID, &f.InviteCode, &f.CreatedAt); err != nil {
			return err
		}
		f.CreatedAt = f.CreatedAt.UTC()
		backup.Families = append(backup.Families, f)
	}
	return rows.Err()
}

func (s *BackupService) exportUsers(ctx context.Context, backup *BackupData) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, family_id, email, display_name, partner_id, avatar_color, created_at FROM users ORDER BY created_at, id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var u models.User
		var familyID, partnerID sql.NullString
		if err := rows.Scan(&u.ID, &familyID, &u.Email, &u.DisplayName, &partnerID, &u.AvatarColor, &u.CreatedAt); err != nil {
			return err
		}
		if familyID.Valid {
			u.FamilyID = &familyID.String
		}
		if partnerID.Valid {
			u.PartnerID = &partnerID.String
		}
		u.CreatedAt = u.CreatedAt.UTC()
		backup.Users = append(backup.Users, u)
	}
	return rows.Err()
}

func (s *BackupService) exportJoinRequests(ctx context.Context, backup *BackupData) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, family_id, user_id, status, created_at, resolved_at, resolved_by FROM join_requests ORDER BY created_at, id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var jr JoinRequestBackup
		var resolvedAt sql.NullTime
		var resolvedBy sql.NullString
		if err := rows.Scan(&jr.ID, &jr.FamilyID, &jr.UserID, &jr.Status, &jr.CreatedAt, &resolvedAt, &resolvedBy); err != nil {
			return err
		}
		jr.CreatedAt = jr.CreatedAt.UTC()
		if resolvedAt.Valid {
			t := resolvedAt.Time.UTC()
			jr.ResolvedAt = &t
		}
		if resolvedBy.Valid {
			jr.ResolvedBy = &resolvedBy.String
		}
		backup.JoinRequests = append(backup.JoinRequests, jr)
	}
	return rows.Err()
}

func (s *BackupService) exportExpenses(ctx context.Context, backup *BackupData) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, family_id, paid_by, amount_cents, description, category, spent_at, created_at FROM expenses ORDER BY created_at, id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.FamilyID, &e.PaidBy, &e.Amount.Cents, &e.Description, &e.Category, &e.SpentAt, &e.CreatedAt); err != nil {
			return err
		}
		e.SpentAt = e.SpentAt.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		backup.Expenses = append(backup.Expenses, e)
	}
	return rows.Err()
}

func (s *BackupService) exportSavingsGoals(ctx context.Context, backup *BackupData) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, family_id, title, target_cents, current_cents, emoji, created_at FROM savings_goals ORDER BY created_at, id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var g models.SavingsGoal
		if err := rows.Scan(&g.ID, &g.FamilyID, &g.Title, &g.Target.Cents, &g.Current.Cents, &g.Emoji, &g.CreatedAt); err != nil {
			return err
		}
		g.CreatedAt = g.CreatedAt.UTC()
		backup.SavingsGoals = append(backup.SavingsGoals, g)
	}
	return rows.Err()
}

func importFamilies(ctx context.Context, tx *database.Tx, backup *BackupData) error {
	for _, f := range backup.Families {
		_, err := tx.ExecContext(ctx, "INSERT INTO families (id, invite_code, created_at) VALUES (?, ?, ?)",
			f.ID, f.InviteCode, f.CreatedAt)
		if err != nil {
			return fmt.Errorf("family %s: %w", f.ID, err)
		}
	}
	return nil
}

// importUsers inserts users unpaired, then links partners once every row exists
func importUsers(ctx context.Context, tx *database.Tx, backup *BackupData) error {
	for _, u := range backup.Users {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, family_id, email, display_name, avatar_color, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			u.ID, nullIfEmpty(u.FamilyID), u.Email, u.DisplayName, u.AvatarColor, u.CreatedAt)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	for _, u := range backup.Users {
		if u.PartnerID == nil {
			continue
		}
		if _, err := tx.ExecContext(ctx, "UPDATE users SET partner_id = ? WHERE id = ?", *u.PartnerID, u.ID); err != nil {
			return fmt.Errorf("partner of user %s: %w", u.ID, err)
		}
	}
	return nil
}

func importJoinRequests(ctx context.Context, tx *database.Tx, backup *BackupData) error {
	for _, jr := range backup.JoinRequests {
		var resolvedAt any
		if jr.ResolvedAt != nil {
			resolvedAt = *jr.ResolvedAt
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO join_requests (id, family_id, user_id, status, created_at, resolved_at, resolved_by) VALUES (?, ?, ?, ?, ?, ?, ?)",
			jr.ID, jr.FamilyID, jr.UserID, jr.Status, jr.CreatedAt, resolvedAt, nullIfEmpty(jr.ResolvedBy))
		if err != nil {
			return fmt.Errorf("join request %s: %w", jr.ID, err)
		}
	}
	return nil
}

func importExpenses(ctx context.Context, tx *database.Tx, backup *BackupData) error {
	for _, e := range backup.Expenses {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expenses (id, family_id, paid_by, amount_cents, description, category, spent_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			e.ID, e.FamilyID, e.PaidBy, e.Amount.Cents, e.Description, e.Category, e.SpentAt, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("expense %s: %w", e.ID, err)
		}
	}
	return nil
}

func importSavingsGoals(ctx context.Context, tx *database.Tx, backup *BackupData) error {
	for _, g := range backup.SavingsGoals {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO savings_goals (id, family_id, title, target_cents, current_cents, emoji, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			g.ID, g.FamilyID, g.Title, g.Target.Cents, g.Current.Cents, g.Emoji, g.CreatedAt)
		if err != nil {
			return fmt.Errorf("savings goal %s: %w", g.ID, err)
		}
	}
	return nil
}

func nullIfEmpty(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
