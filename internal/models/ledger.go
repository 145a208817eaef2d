package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is an immutable ledger entry
type Expense struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"family_id"`
	PaidBy      string    `json:"paid_by"`
	Amount      Money     `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	SpentAt     time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultExpenseCategory is used when none is given
const DefaultExpenseCategory = "other"

// SavingsGoal accumulates contributions. Current may pass Target.
type SavingsGoal struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Title     string    `json:"title"`
	Target    Money     `json:"target_amount"`
	Current   Money     `json:"current_amount"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultGoalEmoji is used when none is given
const DefaultGoalEmoji = "🎯"

// Progress returns Current/Target as a fraction capped at 1
func (g *SavingsGoal) Progress() float64 {
	if g.Target.Cents <= 0 {
		return 0
	}
	if g.Current.Cents >= g.Target.Cents {
		return 1
	}
	return float64(g.Current.Cents) / float64(g.Target.Cents)
}

// Reached reports whether the goal has been met
func (g *SavingsGoal) Reached() bool {
	return g.Current.Cents >= g.Target.Cents
}

// Settlement is the settle-up view between two partners. Balance is
// (PaidA - PaidB) / 2: positive means B owes A, negative means A owes B.
type Settlement struct {
	FamilyID  string          `json:"family_id"`
	UserA     string          `json:"user_a"`
	UserB     string          `json:"user_b"`
	PaidA     Money           `json:"paid_a"`
	PaidB     Money           `json:"paid_b"`
	Total     Money           `json:"total"`
	FairShare decimal.Decimal `json:"fair_share"`
	Balance   decimal.Decimal `json:"balance"`
}

// Settled reports whether nobody owes anything
func (s Settlement) Settled() bool {
	return s.Balance.IsZero()
}

// Debtor returns who owes whom and how much. Both ids are empty when settled.
func (s Settlement) Debtor() (debtor, creditor string, amount decimal.Decimal) {
	switch s.Balance.Sign() {
	case 1:
		return s.UserB, s.UserA, s.Balance
	case -1:
		return s.UserA, s.UserB, s.Balance.Neg()
	default:
		return "", "", decimal.Zero
	}
}
