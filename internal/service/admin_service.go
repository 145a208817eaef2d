package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"usos/internal/database"
	"usos/internal/log"
	"usos/internal/models"
	"usos/internal/notify"
	"usos/internal/repository"
)

// AdminService performs maintenance that bypasses the pairing rules
type AdminService struct {
	db       *database.DB
	admin    *repository.AdminRepository
	families *repository.FamilyRepository
	users    *repository.UserRepository
	profiles *ProfileService
	emitter
	logger *log.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	db *database.DB,
	admin *repository.AdminRepository,
	families *repository.FamilyRepository,
	users *repository.UserRepository,
	profiles *ProfileService,
	notifier notify.Notifier,
	logger *log.Logger,
) *AdminService {
	logger = logger.WithComponent(log.ComponentAdmin)
	return &AdminService{
		db:       db,
		admin:    admin,
		families: families,
		users:    users,
		profiles: profiles,
		emitter:  newEmitter(notifier, logger),
		logger:   logger,
	}
}

// ResetAll deletes all data and returns the number of rows removed per table
func (s *AdminService) ResetAll(ctx context.Context) (map[string]int64, error) {
	deleted, err := s.admin.ResetAll(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.WarnContext(ctx, "All data reset", "deleted", deleted)
	s.emit(ctx, notify.Event{EntityType: notify.EntityFamily, Action: notify.ActionReset})
	return deleted, nil
}

// CreateFamily creates an empty family. An empty code draws a random one.
func (s *AdminService) CreateFamily(ctx context.Context, code string) (*models.Family, error) {
	if code != "" {
		code = NormalizeInviteCode(code)
		if !ValidInviteCode(code) {
			return nil, validationError(ErrInvalidInviteCode, MsgInvalidCode)
		}
		return s.insertFamily(ctx, code)
	}

	for attempt := 0; attempt < maxInviteCodeAttempts; attempt++ {
		generated, err := GenerateInviteCode()
		if err != nil {
			return nil, err
		}
		family, err := s.insertFamily(ctx, generated)
		if IsConflict(err) {
			continue
		}
		return family, err
	}
	return nil, conflictError(ErrInviteCodeExhausted, "")
}

func (s *AdminService) insertFamily(ctx context.Context, code string) (*models.Family, error) {
	family := &models.Family{ID: uuid.NewString(), InviteCode: code, CreatedAt: time.Now().UTC()}
	if err := s.families.Create(ctx, family); err != nil {
		if s.db.IsUniqueViolation(err) {
			return nil, conflictError(ErrInviteCodeExhausted, "Invite code already in use")
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "Family created by admin", log.FieldFamilyID, family.ID)
	s.emit(ctx, notify.Event{
		EntityType: notify.EntityFamily, EntityID: family.ID, FamilyID: family.ID,
		Action: notify.ActionCreated, OccurredAt: family.CreatedAt,
	})
	return family, nil
}

// CreateUser creates a profile, optionally placed straight into a family
func (s *AdminService) CreateUser(ctx context.Context, email, displayName string, familyID *string) (*models.User, error) {
	if familyID != nil {
		family, err := s.families.GetByID(ctx, *familyID)
		if err != nil {
			return nil, err
		}
		if family == nil {
			return nil, notFoundError(ErrFamilyNotFound, "")
		}
	}

	user, err := s.profiles.CreateProfile(ctx, email, displayName)
	if err != nil {
		return nil, err
	}
	if familyID == nil {
		return user, nil
	}

	if _, err := s.users.ForceMembership(ctx, user.ID, familyID, nil); err != nil {
		return nil, err
	}
	user.FamilyID = familyID
	s.emit(ctx, notify.Event{
		EntityType: notify.EntityUser, EntityID: user.ID, FamilyID: *familyID, UserID: user.ID,
		Action: notify.ActionUpdated,
	})
	return user, nil
}

// LinkPartners places a and b in familyID and pairs them, overwriting any
// previous membership. Former partners of either are unlinked.
func (s *AdminService) LinkPartners(ctx context.Context, userA, userB, familyID string) error {
	if userA == userB {
		return validationError(ErrSameUser, "")
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		users := s.users.WithTx(tx)

		family, err := families.GetByID(ctx, familyID)
		if err != nil {
			return err
		}
		if family == nil {
			return notFoundError(ErrFamilyNotFound, "")
		}

		for _, id := range []string{userA, userB} {
			u, err := users.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if u == nil {
				return notFoundError(ErrUserNotFound, "")
			}
			if u.PartnerID == nil || *u.PartnerID == userA || *u.PartnerID == userB {
				continue
			}
			former, err := users.GetByID(ctx, *u.PartnerID)
			if err != nil {
				return err
			}
			if former != nil {
				if _, err := users.ForceMembership(ctx, former.ID, former.FamilyID, nil); err != nil {
					return err
				}
			}
		}

		// anyone else in the family leaves so it holds exactly the pair
		members, err := users.ListByFamily(ctx, familyID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.ID != userA && m.ID != userB {
				if _, err := users.ForceMembership(ctx, m.ID, nil, nil); err != nil {
					return err
				}
			}
		}

		if _, err := users.ForceMembership(ctx, userA, &familyID, &userB); err != nil {
			return err
		}
		_, err = users.ForceMembership(ctx, userB, &familyID, &userA)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.WarnContext(ctx, "Partners linked by admin",
		log.FieldFamilyID, familyID, "user_a", userA, "user_b", userB)
	s.emit(ctx,
		notify.Event{EntityType: notify.EntityUser, EntityID: userA, FamilyID: familyID, UserID: userA, Action: notify.ActionUpdated},
		notify.Event{EntityType: notify.EntityUser, EntityID: userB, FamilyID: familyID, UserID: userB, Action: notify.ActionUpdated},
	)
	return nil
}

// ListFamilies returns every family
func (s *AdminService) ListFamilies(ctx context.Context) ([]models.Family, error) {
	return s.families.List(ctx)
}
