package sheets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usos/internal/log"
	"usos/internal/models"
	"usos/internal/notify"
)

type memoryWriter struct {
	mu   sync.Mutex
	rows []Row
	err  error
}

func (w *memoryWriter) Append(_ context.Context, row Row) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	w.rows = append(w.rows, row)
	return "mem", nil
}

type expenseFunc func(ctx context.Context, id string) (*models.Expense, error)

func (f expenseFunc) GetByID(ctx context.Context, id string) (*models.Expense, error) { return f(ctx, id) }

type userFunc func(ctx context.Context, id string) (*models.User, error)

func (f userFunc) GetByID(ctx context.Context, id string) (*models.User, error) { return f(ctx, id) }

func TestExporterAppendsCreatedExpenses(t *testing.T) {
	spent := time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)
	expenses := expenseFunc(func(_ context.Context, id string) (*models.Expense, error) {
		if id != "exp-1" {
			return nil, nil
		}
		return &models.Expense{
			ID: "exp-1", FamilyID: "fam-1", PaidBy: "alice", Amount: models.Cents(1250),
			Description: "Groceries", Category: "food", SpentAt: spent,
		}, nil
	})
	users := userFunc(func(_ context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, DisplayName: "Alice"}, nil
	})
	writer := &memoryWriter{}
	x := NewExporter(writer, expenses, users, log.Discard())
	ctx := context.Background()

	require.NoError(t, x.Notify(ctx, notify.Event{EntityType: notify.EntityExpense, EntityID: "exp-1", Action: notify.ActionCreated}))
	require.NoError(t, x.Notify(ctx, notify.Event{EntityType: notify.EntitySavingsGoal, EntityID: "g", Action: notify.ActionCreated}))
	require.NoError(t, x.Notify(ctx, notify.Event{EntityType: notify.EntityExpense, EntityID: "gone", Action: notify.ActionCreated}))

	require.Len(t, writer.rows, 1)
	assert.Equal(t, []any{"2026-04-02", "Groceries", "food", "Alice", "12.50", "exp-1"}, writer.rows[0].Values())
}

func TestExporterReportsWriteFailures(t *testing.T) {
	expenses := expenseFunc(func(_ context.Context, id string) (*models.Expense, error) {
		return &models.Expense{ID: id, PaidBy: "bob", Amount: models.Cents(1)}, nil
	})
	users := userFunc(func(context.Context, string) (*models.User, error) { return nil, nil })
	writer := &memoryWriter{err: errors.New("quota exceeded")}
	x := NewExporter(writer, expenses, users, log.Discard())

	err := x.Notify(context.Background(), notify.Event{EntityType: notify.EntityExpense, EntityID: "exp-2", Action: notify.ActionCreated})
	assert.ErrorContains(t, err, "quota exceeded")
}
