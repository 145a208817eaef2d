package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"usos/internal/database"
	"usos/internal/log"
	"usos/internal/models"
	"usos/internal/notify"
	"usos/internal/repository"
	"usos/internal/validation"
)

const (
	maxDescriptionLength = 200
	maxCategoryLength    = 64
	maxGoalTitleLength   = 100
	maxEmojiLength       = 16
)

// LedgerService records shared expenses, computes settle-up and manages
// savings goals
type LedgerService struct {
	db       *database.DB
	families *repository.FamilyRepository
	users    *repository.UserRepository
	expenses *repository.ExpenseRepository
	goals    *repository.SavingsGoalRepository
	emitter
	logger *log.Logger
	now    func() time.Time
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	db *database.DB,
	families *repository.FamilyRepository,
	users *repository.UserRepository,
	expenses *repository.ExpenseRepository,
	goals *repository.SavingsGoalRepository,
	notifier notify.Notifier,
	logger *log.Logger,
) *LedgerService {
	logger = logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		db:       db,
		families: families,
		users:    users,
		expenses: expenses,
		goals:    goals,
		emitter:  newEmitter(notifier, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// ParseAmount converts user input such as "12.50" into Money
func ParseAmount(s string) (models.Money, error) {
	m, err := models.ParseMoney(s)
	if err != nil {
		return models.Money{}, validationError(fmt.Errorf("%w: %w", ErrInvalidAmount, err), MsgInvalidAmount)
	}
	if err := checkAmount(m); err != nil {
		return models.Money{}, err
	}
	return m, nil
}

// checkAmount accepts amounts between one cent and models.MaxAmountCents
func checkAmount(m models.Money) error {
	if !m.IsPositive() {
		return validationError(ErrInvalidAmount, MsgInvalidAmount)
	}
	if m.Cents > models.MaxAmountCents {
		return validationError(fmt.Errorf("%w: %s exceeds the maximum", ErrInvalidAmount, m), MsgAmountTooLarge)
	}
	return nil
}

func (s *LedgerService) requireFamily(ctx context.Context, familyID string) error {
	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return err
	}
	if family == nil {
		return notFoundError(ErrFamilyNotFound, "")
	}
	return nil
}

// RecordExpense appends an expense paid by paidBy, who must be a member
func (s *LedgerService) RecordExpense(ctx context.Context, familyID, paidBy string, amount models.Money, description, category string) (*models.Expense, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	description = strings.TrimSpace(description)
	if err := validation.ValidateMaxLength("description", description, maxDescriptionLength); err != nil {
		return nil, fieldError(ErrFieldTooLong, err)
	}
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = models.DefaultExpenseCategory
	}
	if err := validation.ValidateMaxLength("category", category, maxCategoryLength); err != nil {
		return nil, fieldError(ErrFieldTooLong, err)
	}

	if err := s.requireFamily(ctx, familyID); err != nil {
		return nil, err
	}
	payer, err := s.users.GetByID(ctx, paidBy)
	if err != nil {
		return nil, err
	}
	if payer == nil || !payer.InFamily(familyID) {
		return nil, validationError(ErrNotFamilyMember, "The payer must be a member of the family")
	}

	now := s.now().UTC()
	expense := &models.Expense{
		ID:          uuid.NewString(),
		FamilyID:    familyID,
		PaidBy:      paidBy,
		Amount:      amount,
		Description: description,
		Category:    category,
		SpentAt:     now,
		CreatedAt:   now,
	}
	if err := s.expenses.Create(ctx, expense); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Expense recorded",
		log.FieldExpenseID, expense.ID,
		log.FieldFamilyID, familyID,
		log.FieldUserID, paidBy,
		log.FieldAmountCents, amount.Cents,
		log.FieldOperation, log.OpCreate)
	s.emit(ctx, notify.Event{
		EntityType: notify.EntityExpense, EntityID: expense.ID, FamilyID: familyID,
		UserID: paidBy, Action: notify.ActionCreated, OccurredAt: now,
	})
	return expense, nil
}

// ListExpenses returns the family's ledger, newest first
func (s *LedgerService) ListExpenses(ctx context.Context, familyID string) ([]models.Expense, error) {
	if err := s.requireFamily(ctx, familyID); err != nil {
		return nil, err
	}
	return s.expenses.ListByFamily(ctx, familyID)
}

// ComputeSettleUp folds the whole ledger on every call
func (s *LedgerService) ComputeSettleUp(ctx context.Context, familyID, userA, userB string) (models.Settlement, error) {
	if userA == userB {
		return models.Settlement{}, validationError(ErrSameUser, "")
	}
	if err := s.requireFamily(ctx, familyID); err != nil {
		return models.Settlement{}, err
	}

	expenses, err := s.expenses.ListByFamily(ctx, familyID)
	if err != nil {
		return models.Settlement{}, err
	}
	return Settle(familyID, userA, userB, expenses), nil
}

// SettleUpForFamily computes the balance between the family's two members,
// in joining order
func (s *LedgerService) SettleUpForFamily(ctx context.Context, familyID string) (models.Settlement, error) {
	if err := s.requireFamily(ctx, familyID); err != nil {
		return models.Settlement{}, err
	}
	members, err := s.users.ListByFamily(ctx, familyID)
	if err != nil {
		return models.Settlement{}, err
	}
	if len(members) < models.MaxFamilyMembers {
		return models.Settlement{}, validationError(ErrFamilyIncomplete, "Settle-up needs both partners in the family")
	}
	return s.ComputeSettleUp(ctx, familyID, members[0].ID, members[1].ID)
}

// CreateSavingsGoal adds a goal starting at zero
func (s *LedgerService) CreateSavingsGoal(ctx context.Context, familyID, title string, target models.Money, emoji string) (*models.SavingsGoal, error) {
	title = strings.TrimSpace(title)
	if err := validation.ValidateRequired("title", title); err != nil {
		return nil, fieldError(ErrTitleRequired, err)
	}
	if err := validation.ValidateMaxLength("title", title, maxGoalTitleLength); err != nil {
		return nil, fieldError(ErrFieldTooLong, err)
	}
	if err := checkAmount(target); err != nil {
		return nil, err
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		emoji = models.DefaultGoalEmoji
	}
	if err := validation.ValidateMaxLength("emoji", emoji, maxEmojiLength); err != nil {
		return nil, fieldError(ErrFieldTooLong, err)
	}

	if err := s.requireFamily(ctx, familyID); err != nil {
		return nil, err
	}

	goal := &models.SavingsGoal{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		Title:     title,
		Target:    target,
		Emoji:     emoji,
		CreatedAt: s.now().UTC(),
	}
	if err := s.goals.Create(ctx, goal); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Savings goal created",
		log.FieldGoalID, goal.ID,
		log.FieldFamilyID, familyID,
		log.FieldOperation, log.OpCreate)
	s.emit(ctx, notify.Event{
		EntityType: notify.EntitySavingsGoal, EntityID: goal.ID, FamilyID: familyID,
		Action: notify.ActionCreated, OccurredAt: goal.CreatedAt,
	})
	return goal, nil
}

// Contribute adds amount to the goal atomically and returns the updated goal
func (s *LedgerService) Contribute(ctx context.Context, goalID string, amount models.Money) (*models.SavingsGoal, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	var goal *models.SavingsGoal
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		goals := s.goals.WithTx(tx)

		ok, err := goals.AddContribution(ctx, goalID, amount.Cents)
		if err != nil {
			return err
		}
		if !ok {
			return notFoundError(ErrSavingsGoalNotFound, "")
		}
		goal, err = goals.GetByID(ctx, goalID)
		if err != nil {
			return err
		}
		if goal == nil {
			return notFoundError(ErrSavingsGoalNotFound, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	s.logger.InfoContext(ctx, "Savings goal contribution",
		log.FieldGoalID, goalID,
		log.FieldFamilyID, goal.FamilyID,
		log.FieldAmountCents, amount.Cents,
		log.FieldOperation, log.OpUpdate)
	s.emit(ctx, notify.Event{
		EntityType: notify.EntitySavingsGoal, EntityID: goalID, FamilyID: goal.FamilyID,
		Action: notify.ActionUpdated, OccurredAt: now,
	})
	return goal, nil
}

// GetSavingsGoal returns a goal by id
func (s *LedgerService) GetSavingsGoal(ctx context.Context, goalID string) (*models.SavingsGoal, error) {
	goal, err := s.goals.GetByID(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, notFoundError(ErrSavingsGoalNotFound, "")
	}
	return goal, nil
}

// ListSavingsGoals returns the family's goals, oldest first
func (s *LedgerService) ListSavingsGoals(ctx context.Context, familyID string) ([]models.SavingsGoal, error) {
	if err := s.requireFamily(ctx, familyID); err != nil {
		return nil, err
	}
	return s.goals.ListByFamily(ctx, familyID)
}
