package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"usos/internal/log"
	"usos/internal/models"
	"usos/internal/notify"
	"usos/internal/repository"
	"usos/internal/validation"
)

const maxDisplayNameLength = 50

// ProfileService manages user profiles
type ProfileService struct {
	users *repository.UserRepository
	emitter
	logger *log.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(users *repository.UserRepository, notifier notify.Notifier, logger *log.Logger) *ProfileService {
	logger = logger.WithComponent(log.ComponentProfile)
	return &ProfileService{
		users:   users,
		emitter: newEmitter(notifier, logger),
		logger:  logger,
	}
}

// EnsureProfile returns the profile of an authenticated user, creating it on
// first use. The display name defaults to the local part of the email.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID, email, displayName string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateRequired("email", email); err != nil {
		return nil, fieldError(ErrEmailRequired, err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, fieldError(ErrInvalidEmail, err)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}
	if err := validation.ValidateMaxLength("display_name", displayName, maxDisplayNameLength); err != nil {
		return nil, fieldError(ErrFieldTooLong, err)
	}

	color, err := randomAvatarColor()
	if err != nil {
		return nil, err
	}

	user = &models.User{
		ID:          userID,
		Email:       email,
		DisplayName: displayName,
		AvatarColor: color,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if s.users.IsUniqueViolation(err) {
			// a concurrent first request may have won the race for the same id
			if existing, getErr := s.users.GetByID(ctx, userID); getErr == nil && existing != nil {
				return existing, nil
			}
			return nil, conflictError(ErrEmailTaken, "This email is already registered")
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "Profile created", log.FieldUserID, userID, log.FieldOperation, log.OpCreate)
	s.emit(ctx, notify.Event{
		EntityType: notify.EntityUser, EntityID: userID, UserID: userID,
		Action: notify.ActionCreated, OccurredAt: user.CreatedAt,
	})
	return user, nil
}

// CreateProfile creates a profile with a new id
func (s *ProfileService) CreateProfile(ctx context.Context, email, displayName string) (*models.User, error) {
	return s.EnsureProfile(ctx, uuid.NewString(), email, displayName)
}

// GetProfile returns a profile by id
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFoundError(ErrUserNotFound, "")
	}
	return user, nil
}

// GetPartner returns the user's partner, or nil when unpaired
func (s *ProfileService) GetPartner(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.PartnerID == nil {
		return nil, nil
	}
	return s.users.GetByID(ctx, *user.PartnerID)
}

// UpdateProfile changes the display name and avatar colour
func (s *ProfileService) UpdateProfile(ctx context.Context, userID, displayName, avatarColor string) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = user.DisplayName
	}
	if err := validation.ValidateMaxLength("display_name", displayName, maxDisplayNameLength); err != nil {
		return nil, fieldError(ErrFieldTooLong, err)
	}
	if avatarColor == "" {
		avatarColor = user.AvatarColor
	}
	if err := validation.ValidateAvatarColor(avatarColor, models.AvatarColors); err != nil {
		return nil, fieldError(ErrInvalidAvatarColor, err)
	}
	avatarColor = strings.ToUpper(avatarColor)

	if _, err := s.users.UpdateProfile(ctx, userID, displayName, avatarColor); err != nil {
		return nil, err
	}
	user.DisplayName = displayName
	user.AvatarColor = avatarColor

	familyID := ""
	if user.FamilyID != nil {
		familyID = *user.FamilyID
	}
	s.emit(ctx, notify.Event{
		EntityType: notify.EntityUser, EntityID: userID, FamilyID: familyID, UserID: userID,
		Action: notify.ActionUpdated,
	})
	return user, nil
}

func randomAvatarColor() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(models.AvatarColors))))
	if err != nil {
		return "", fmt.Errorf("failed to pick avatar color: %w", err)
	}
	return models.AvatarColors[n.Int64()], nil
}
