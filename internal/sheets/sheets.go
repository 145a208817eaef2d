// Package sheets exports recorded expenses to a spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"usos/internal/log"
	"usos/internal/models"
	"usos/internal/notify"
)

// Row is one exported expense
type Row struct {
	ExpenseID   string
	FamilyID    string
	Date        time.Time
	Description string
	Category    string
	PaidBy      string
	Amount      models.Money
}

// Values returns the cells of the row in column order
func (r Row) Values() []any {
	return []any{
		r.Date.Format(time.DateOnly),
		r.Description,
		r.Category,
		r.PaidBy,
		r.Amount.String(),
		r.ExpenseID,
	}
}

// Ports for outbound adapters.
type (
	RowWriter interface {
		Append(ctx context.Context, row Row) (rowRef string, err error)
	}

	ExpenseLookup interface {
		GetByID(ctx context.Context, expenseID string) (*models.Expense, error)
	}

	UserLookup interface {
		GetByID(ctx context.Context, userID string) (*models.User, error)
	}
)

// Exporter appends a row for every recorded expense. It is a notifier so
// it can sit behind the in-process queue or an AMQP consumer.
type Exporter struct {
	writer   RowWriter
	expenses ExpenseLookup
	users    UserLookup
	logger   *log.Logger
}

// NewExporter creates a new spreadsheet exporter
func NewExporter(writer RowWriter, expenses ExpenseLookup, users UserLookup, logger *log.Logger) *Exporter {
	return &Exporter{
		writer:   writer,
		expenses: expenses,
		users:    users,
		logger:   logger.WithComponent(log.ComponentSheets),
	}
}

// Notify implements notify.Notifier
func (x *Exporter) Notify(ctx context.Context, event notify.Event) error {
	if event.EntityType != notify.EntityExpense || event.Action != notify.ActionCreated {
		return nil
	}

	expense, err := x.expenses.GetByID(ctx, event.EntityID)
	if err != nil {
		return fmt.Errorf("load expense %s: %w", event.EntityID, err)
	}
	if expense == nil {
		// the ledger was reset before the event arrived
		x.logger.WarnContext(ctx, "Expense vanished before export", log.FieldExpenseID, event.EntityID)
		return nil
	}

	payer := expense.PaidBy
	user, err := x.users.GetByID(ctx, expense.PaidBy)
	if err != nil {
		return fmt.Errorf("load payer %s: %w", expense.PaidBy, err)
	}
	if user != nil && user.DisplayName != "" {
		payer = user.DisplayName
	}

	ref, err := x.writer.Append(ctx, Row{
		ExpenseID:   expense.ID,
		FamilyID:    expense.FamilyID,
		Date:        expense.SpentAt,
		Description: expense.Description,
		Category:    expense.Category,
		PaidBy:      payer,
		Amount:      expense.Amount,
	})
	if err != nil {
		return fmt.Errorf("append expense %s: %w", expense.ID, err)
	}

	x.logger.InfoContext(ctx, "Expense exported",
		log.FieldExpenseID, expense.ID,
		log.FieldFamilyID, expense.FamilyID,
		"row", ref,
		log.FieldOperation, log.OpAppend)
	return nil
}

// ErrNotConfigured is returned when no spreadsheet is set up
var ErrNotConfigured = errors.New("spreadsheet export is not configured")
