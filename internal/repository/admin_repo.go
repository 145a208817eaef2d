package repository

import (
	"context"
	"fmt"

	"usos/internal/database"
)

// resetOrder deletes children before parents so foreign keys hold on every dialect
var resetOrder = []string{"expenses", "savings_goals", "join_requests", "users", "families"}

// AdminRepository holds maintenance operations that bypass domain rules
type AdminRepository struct {
	db *database.DB
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(db *database.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// ResetAll deletes every row of every table in one transaction
func (r *AdminRepository) ResetAll(ctx context.Context) (map[string]int64, error) {
	deleted := make(map[string]int64, len(resetOrder))
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		// users reference each other through partner_id
		if _, err := tx.ExecContext(ctx, "UPDATE users SET partner_id = NULL"); err != nil {
			return fmt.Errorf("failed to unlink partners: %w", err)
		}
		for _, table := range resetOrder {
			result, err := tx.ExecContext(ctx, "DELETE FROM "+table)
			if err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to count cleared %s: %w", table, err)
			}
			deleted[table] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
