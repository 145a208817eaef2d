package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"usos/internal/database"
	"usos/internal/log"
	"usos/internal/models"
	"usos/internal/notify"
	"usos/internal/repository"
)

// errCodeTaken makes CreateFamily try another invite code
var errCodeTaken = errors.New("invite code taken")

// PairingService links two accounts into a family through invite codes
// and join requests
type PairingService struct {
	db       *database.DB
	families *repository.FamilyRepository
	users    *repository.UserRepository
	requests *repository.JoinRequestRepository
	emitter
	logger *log.Logger

	requestTTL   time.Duration
	generateCode CodeGenerator
	now          func() time.Time
}

// PairingOption customizes a PairingService
type PairingOption func(*PairingService)

// WithJoinRequestTTL declines pending requests older than ttl. Zero keeps them forever.
func WithJoinRequestTTL(ttl time.Duration) PairingOption {
	return func(s *PairingService) { s.requestTTL = ttl }
}

// WithCodeGenerator replaces the random invite code source
func WithCodeGenerator(gen CodeGenerator) PairingOption {
	return func(s *PairingService) { s.generateCode = gen }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) PairingOption {
	return func(s *PairingService) { s.now = now }
}

// NewPairingService creates a new pairing service
func NewPairingService(
	db *database.DB,
	families *repository.FamilyRepository,
	users *repository.UserRepository,
	requests *repository.JoinRequestRepository,
	notifier notify.Notifier,
	logger *log.Logger,
	opts ...PairingOption,
) *PairingService {
	logger = logger.WithComponent(log.ComponentPairing)
	s := &PairingService{
		db:           db,
		families:     families,
		users:        users,
		requests:     requests,
		emitter:      newEmitter(notifier, logger),
		logger:       logger,
		generateCode: GenerateInviteCode,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PairingService) clock() time.Time {
	return s.now().UTC()
}

// CreateFamily creates a family owned by ownerUserID with a fresh invite code
func (s *PairingService) CreateFamily(ctx context.Context, ownerUserID string) (*models.Family, error) {
	for attempt := 1; attempt <= maxInviteCodeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return nil, err
		}

		family, err := s.createFamily(ctx, ownerUserID, code)
		if errors.Is(err, errCodeTaken) {
			s.logger.DebugContext(ctx, "Invite code collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.InfoContext(ctx, "Family created",
			log.FieldFamilyID, family.ID,
			log.FieldUserID, ownerUserID,
			log.FieldOperation, log.OpCreate)
		s.emit(ctx,
			notify.Event{EntityType: notify.EntityFamily, EntityID: family.ID, FamilyID: family.ID, UserID: ownerUserID, Action: notify.ActionCreated, OccurredAt: family.CreatedAt},
			notify.Event{EntityType: notify.EntityUser, EntityID: ownerUserID, FamilyID: family.ID, UserID: ownerUserID, Action: notify.ActionUpdated, OccurredAt: family.CreatedAt},
		)
		return family, nil
	}

	s.logger.ErrorContext(ctx, "Invite code space exhausted", "attempts", maxInviteCodeAttempts)
	return nil, conflictError(ErrInviteCodeExhausted, "Could not create a family right now, please retry")
}

// createFamily runs one attempt in its own transaction. A failed INSERT
// poisons a PostgreSQL transaction, so collisions restart from scratch.
func (s *PairingService) createFamily(ctx context.Context, ownerUserID, code string) (*models.Family, error) {
	family := &models.Family{
		ID:         uuid.NewString(),
		InviteCode: code,
		CreatedAt:  s.clock(),
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		users := s.users.WithTx(tx)
		requests := s.requests.WithTx(tx)

		owner, err := users.GetByID(ctx, ownerUserID)
		if err != nil {
			return err
		}
		if owner == nil {
			return notFoundError(ErrUserNotFound, "")
		}
		if owner.HasFamily() {
			return conflictError(ErrAlreadyInFamily, MsgAlreadyInFamily)
		}

		pending, err := requests.GetPendingByUser(ctx, ownerUserID)
		if err != nil {
			return err
		}
		if pending != nil {
			return conflictError(ErrPendingRequest, MsgPendingRequest)
		}

		existing, err := families.GetByInviteCode(ctx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return errCodeTaken
		}

		if err := families.Create(ctx, family); err != nil {
			if tx.IsUniqueViolation(err) {
				return errCodeTaken
			}
			return err
		}

		assigned, err := users.AssignFamily(ctx, ownerUserID, family.ID)
		if err != nil {
			return err
		}
		if !assigned {
			return conflictError(ErrAlreadyInFamily, MsgAlreadyInFamily)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return family, nil
}

// RequestJoin files a pending request from userID to the family owning code
func (s *PairingService) RequestJoin(ctx context.Context, userID, code string) (*models.JoinRequest, error) {
	code = NormalizeInviteCode(code)
	if code == "" {
		return nil, validationError(ErrEmptyInviteCode, "Please enter an invite code")
	}
	if !ValidInviteCode(code) {
		return nil, notFoundError(ErrInvalidInviteCode, MsgInvalidCode)
	}

	if err := s.expireStale(ctx); err != nil {
		return nil, err
	}

	req := &models.JoinRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    models.JoinRequestPending,
		CreatedAt: s.clock(),
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		users := s.users.WithTx(tx)
		requests := s.requests.WithTx(tx)

		user, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return notFoundError(ErrUserNotFound, "")
		}

		family, err := families.GetByInviteCode(ctx, code)
		if err != nil {
			return err
		}
		if family == nil {
			return notFoundError(ErrInvalidInviteCode, MsgInvalidCode)
		}
		req.FamilyID = family.ID

		if user.HasFamily() {
			return conflictError(ErrAlreadyInFamily, MsgAlreadyInFamily)
		}

		pending, err := requests.GetPendingByUser(ctx, userID)
		if err != nil {
			return err
		}
		if pending != nil {
			return conflictError(ErrPendingRequest, MsgPendingRequest)
		}

		count, err := families.CountMembers(ctx, family.ID)
		if err != nil {
			return err
		}
		if count >= models.MaxFamilyMembers {
			return conflictError(ErrFamilyFull, MsgFamilyComplete)
		}

		if err := requests.Create(ctx, req); err != nil {
			if tx.IsUniqueViolation(err) {
				return conflictError(ErrPendingRequest, MsgPendingRequest)
			}
			return err
		}
		req.RequesterName = user.DisplayName
		req.RequesterEmail = user.Email
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Join request created",
		log.FieldRequestID, req.ID,
		log.FieldFamilyID, req.FamilyID,
		log.FieldUserID, userID,
		log.FieldOperation, log.OpRequest)
	s.emit(ctx, notify.Event{
		EntityType: notify.EntityJoinRequest, EntityID: req.ID, FamilyID: req.FamilyID,
		UserID: userID, Action: notify.ActionCreated, OccurredAt: req.CreatedAt,
	})
	return req, nil
}

// ListPendingRequests returns the family's pending requests, oldest first
func (s *PairingService) ListPendingRequests(ctx context.Context, familyID string) ([]models.JoinRequest, error) {
	if err := s.expireStale(ctx); err != nil {
		return nil, err
	}

	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, notFoundError(ErrFamilyNotFound, "")
	}

	requests, err := s.requests.ListPendingByFamily(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list join requests: %w", err)
	}
	return requests, nil
}

// GetPendingRequestForUser returns the user's own pending request, or nil
func (s *PairingService) GetPendingRequestForUser(ctx context.Context, userID string) (*models.JoinRequest, error) {
	if err := s.expireStale(ctx); err != nil {
		return nil, err
	}
	return s.requests.GetPendingByUser(ctx, userID)
}

// ApproveRequest lets the requester into the approver's family and pairs
// the two when the approver was alone. The request status update decides
// between concurrent approvals; the loser gets a not-found error.
func (s *PairingService) ApproveRequest(ctx context.Context, requestID, approverUserID string) (requester, approver *models.User, err error) {
	if err := s.expireStale(ctx); err != nil {
		return nil, nil, err
	}

	var familyID string
	now := s.clock()

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		users := s.users.WithTx(tx)
		requests := s.requests.WithTx(tx)

		req, err := requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil || !req.IsPending() {
			return notFoundError(ErrJoinRequestNotFound, MsgAlreadyHandled)
		}
		familyID = req.FamilyID

		if _, err := families.Lock(ctx, familyID); err != nil {
			return err
		}

		approver, err = users.GetByID(ctx, approverUserID)
		if err != nil {
			return err
		}
		if approver == nil {
			return notFoundError(ErrUserNotFound, "")
		}
		if !approver.InFamily(familyID) {
			return validationError(ErrNotFamilyMember, "Only family members can approve requests")
		}

		requester, err = users.GetByID(ctx, req.UserID)
		if err != nil {
			return err
		}
		if requester == nil {
			return notFoundError(ErrUserNotFound, "")
		}
		if requester.HasFamily() {
			return conflictError(ErrAlreadyInFamily, "The requester already belongs to a family")
		}

		members, err := users.ListByFamily(ctx, familyID)
		if err != nil {
			return err
		}
		if len(members) >= models.MaxFamilyMembers {
			return conflictError(ErrFamilyFull, MsgFamilyComplete)
		}

		resolved, err := requests.Resolve(ctx, requestID, models.JoinRequestApproved, &approverUserID, now)
		if err != nil {
			return err
		}
		if !resolved {
			return notFoundError(ErrJoinRequestNotFound, MsgAlreadyHandled)
		}

		assigned, err := users.AssignFamily(ctx, requester.ID, familyID)
		if err != nil {
			return err
		}
		if !assigned {
			return conflictError(ErrAlreadyInFamily, "The requester already belongs to a family")
		}

		if len(members) == 1 {
			if err := pair(ctx, users, requester.ID, approver.ID); err != nil {
				return err
			}
		}

		if requester, err = users.GetByID(ctx, requester.ID); err != nil {
			return err
		}
		if approver, err = users.GetByID(ctx, approver.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "Join request approved",
		log.FieldRequestID, requestID,
		log.FieldFamilyID, familyID,
		log.FieldUserID, approverUserID,
		log.FieldOperation, log.OpApprove)
	s.emit(ctx,
		notify.Event{EntityType: notify.EntityJoinRequest, EntityID: requestID, FamilyID: familyID, UserID: requester.ID, Action: notify.ActionApproved, OccurredAt: now},
		notify.Event{EntityType: notify.EntityUser, EntityID: requester.ID, FamilyID: familyID, UserID: requester.ID, Action: notify.ActionUpdated, OccurredAt: now},
		notify.Event{EntityType: notify.EntityUser, EntityID: approver.ID, FamilyID: familyID, UserID: approver.ID, Action: notify.ActionUpdated, OccurredAt: now},
	)
	return requester, approver, nil
}

// pair links a and b symmetrically; both must be unpaired
func pair(ctx context.Context, users *repository.UserRepository, a, b string) error {
	for _, link := range [][2]string{{a, b}, {b, a}} {
		ok, err := users.SetPartnerIfUnset(ctx, link[0], link[1])
		if err != nil {
			return err
		}
		if !ok {
			return conflictError(ErrFamilyFull, MsgFamilyComplete)
		}
	}
	return nil
}

// DeclineRequest marks a pending request declined. Declining an already
// resolved request is a no-op; an unknown id is not found.
func (s *PairingService) DeclineRequest(ctx context.Context, requestID string) error {
	return s.decline(ctx, requestID, nil)
}

// DeclineRequestAs declines on behalf of actorUserID, who must be a member of
// the family or the requester withdrawing their own request
func (s *PairingService) DeclineRequestAs(ctx context.Context, requestID, actorUserID string) error {
	return s.decline(ctx, requestID, &actorUserID)
}

func (s *PairingService) decline(ctx context.Context, requestID string, actorUserID *string) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return notFoundError(ErrJoinRequestNotFound, "")
	}

	if actorUserID != nil && *actorUserID != req.UserID {
		actor, err := s.users.GetByID(ctx, *actorUserID)
		if err != nil {
			return err
		}
		if actor == nil || !actor.InFamily(req.FamilyID) {
			return validationError(ErrNotFamilyMember, "Only family members can decline requests")
		}
	}

	if !req.IsPending() {
		return nil
	}

	now := s.clock()
	resolved, err := s.requests.Resolve(ctx, requestID, models.JoinRequestDeclined, actorUserID, now)
	if err != nil {
		return err
	}
	if !resolved {
		// someone else resolved it first
		return nil
	}

	s.logger.InfoContext(ctx, "Join request declined",
		log.FieldRequestID, requestID,
		log.FieldFamilyID, req.FamilyID,
		log.FieldOperation, log.OpDecline)
	s.emit(ctx, notify.Event{
		EntityType: notify.EntityJoinRequest, EntityID: requestID, FamilyID: req.FamilyID,
		UserID: req.UserID, Action: notify.ActionDeclined, OccurredAt: now,
	})
	return nil
}

// ExpireStaleRequests declines pending requests older than the configured TTL
func (s *PairingService) ExpireStaleRequests(ctx context.Context) (int64, error) {
	return s.ExpireRequestsOlderThan(ctx, s.requestTTL)
}

// ExpireRequestsOlderThan declines pending requests older than ttl
func (s *PairingService) ExpireRequestsOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	now := s.clock()
	n, err := s.requests.ExpireStale(ctx, now.Add(-ttl), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Expired stale join requests", "count", n, log.FieldOperation, log.OpExpire)
	}
	return n, nil
}

func (s *PairingService) expireStale(ctx context.Context) error {
	_, err := s.ExpireStaleRequests(ctx)
	return err
}

// GetFamily returns the family and its members
func (s *PairingService) GetFamily(ctx context.Context, familyID string) (*models.FamilyWithMembers, error) {
	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, notFoundError(ErrFamilyNotFound, "")
	}

	members, err := s.users.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	return &models.FamilyWithMembers{Family: *family, Members: members}, nil
}

// ListMembers returns the members of a family in joining order
func (s *PairingService) ListMembers(ctx context.Context, familyID string) ([]models.User, error) {
	f, err := s.GetFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	return f.Members, nil
}

// VerifyFamilyAccess checks if a user belongs to a family
func (s *PairingService) VerifyFamilyAccess(ctx context.Context, userID, familyID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to verify family access: %w", err)
	}
	if user == nil || !user.InFamily(familyID) {
		return validationError(ErrNotFamilyMember, "")
	}
	return nil
}
