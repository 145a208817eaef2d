package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"usos/internal/database"
	"usos/internal/models"
)

const joinRequestSelect = `
	SELECT jr.id, jr.family_id, jr.user_id, jr.status, jr.created_at, jr.resolved_at, jr.resolved_by,
		COALESCE(u.display_name, ''), COALESCE(u.email, '')
	FROM join_requests jr
	LEFT JOIN users u ON u.id = jr.user_id
`

// JoinRequestRepository handles database operations for join requests
type JoinRequestRepository struct {
	db database.DBTX
}

// NewJoinRequestRepository creates a new join request repository
func NewJoinRequestRepository(db database.DBTX) *JoinRequestRepository {
	return &JoinRequestRepository{db: db}
}

// WithTx returns a copy bound to tx
func (r *JoinRequestRepository) WithTx(tx *database.Tx) *JoinRequestRepository {
	return &JoinRequestRepository{db: tx}
}

func scanJoinRequest(row rowScanner) (*models.JoinRequest, error) {
	var req models.JoinRequest
	var status string
	var resolvedAt sql.NullTime
	var resolvedBy sql.NullString
	err := row.Scan(&req.ID, &req.FamilyID, &req.UserID, &status, &req.CreatedAt, &resolvedAt, &resolvedBy,
		&req.RequesterName, &req.RequesterEmail)
	if err != nil {
		return nil, err
	}
	req.Status = models.JoinRequestStatus(status)
	req.CreatedAt = req.CreatedAt.UTC()
	req.ResolvedAt = nullTimePtr(resolvedAt)
	req.ResolvedBy = nullStringPtr(resolvedBy)
	return &req, nil
}

// Create inserts a pending request. A second pending request for the same
// user surfaces as a unique violation.
func (r *JoinRequestRepository) Create(ctx context.Context, req *models.JoinRequest) error {
	query := "INSERT INTO join_requests (id, family_id, user_id, status, created_at) VALUES (?, ?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, req.ID, req.FamilyID, req.UserID, string(req.Status), req.CreatedAt); err != nil {
		return fmt.Errorf("failed to create join request: %w", err)
	}
	return nil
}

// GetByID retrieves a join request by ID
func (r *JoinRequestRepository) GetByID(ctx context.Context, requestID string) (*models.JoinRequest, error) {
	req, err := scanJoinRequest(r.db.QueryRowContext(ctx, joinRequestSelect+" WHERE jr.id = ?", requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get join request: %w", err)
	}
	return req, nil
}

// GetPendingByUser returns the user's pending request, if any
func (r *JoinRequestRepository) GetPendingByUser(ctx context.Context, userID string) (*models.JoinRequest, error) {
	req, err := scanJoinRequest(r.db.QueryRowContext(ctx,
		joinRequestSelect+" WHERE jr.user_id = ? AND jr.status = 'pending'", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending join request: %w", err)
	}
	return req, nil
}

// ListPendingByFamily returns pending requests for a family, oldest first
func (r *JoinRequestRepository) ListPendingByFamily(ctx context.Context, familyID string) ([]models.JoinRequest, error) {
	query := joinRequestSelect + " WHERE jr.family_id = ? AND jr.status = 'pending' ORDER BY jr.created_at ASC, jr.id ASC"
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query join requests: %w", err)
	}
	defer rows.Close()

	var requests []models.JoinRequest
	for rows.Next() {
		req, err := scanJoinRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan join request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// Resolve moves a pending request to status. It reports false when the
// request does not exist or was already resolved; that update is the arbiter
// between concurrent approvals.
func (r *JoinRequestRepository) Resolve(ctx context.Context, requestID string, status models.JoinRequestStatus, resolvedBy *string, at time.Time) (bool, error) {
	matched, err := r.db.ExecConditional(ctx,
		"UPDATE join_requests SET status = ?, resolved_at = ?, resolved_by = ? WHERE id = ? AND status = 'pending'",
		string(status), at, stringPtrArg(resolvedBy), requestID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve join request: %w", err)
	}
	return matched, nil
}

// ExpireStale declines every pending request created before cutoff
func (r *JoinRequestRepository) ExpireStale(ctx context.Context, cutoff, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE join_requests SET status = 'declined', resolved_at = ? WHERE status = 'pending' AND created_at < ?",
		at, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire join requests: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read expired count: %w", err)
	}
	return n, nil
}
