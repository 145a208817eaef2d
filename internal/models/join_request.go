package models

import "time"

// JoinRequestStatus is the lifecycle state of a join request
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestDeclined JoinRequestStatus = "declined"
)

// JoinRequest asks an existing family member to let a user in
type JoinRequest struct {
	ID         string            `json:"id"`
	FamilyID   string            `json:"family_id"`
	UserID     string            `json:"user_id"`
	Status     JoinRequestStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy *string           `json:"resolved_by,omitempty"`

	RequesterName  string `json:"requester_name,omitempty"`  // Populated via JOIN
	RequesterEmail string `json:"requester_email,omitempty"` // Populated via JOIN
}

func (r *JoinRequest) IsPending() bool {
	return r.Status == JoinRequestPending
}

// IsStale reports whether a pending request is older than ttl. A zero ttl never expires.
func (r *JoinRequest) IsStale(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && r.IsPending() && now.Sub(r.CreatedAt) > ttl
}
