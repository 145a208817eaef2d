package service

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"usos/internal/models"
)

func expense(family, paidBy string, cents int64) models.Expense {
	return models.Expense{FamilyID: family, PaidBy: paidBy, Amount: models.Cents(cents)}
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name      string
		expenses  []models.Expense
		balance   string
		fairShare string
		debtor    string
	}{
		{
			name:      "empty ledger",
			balance:   "0",
			fairShare: "0",
		},
		{
			name:      "a paid more",
			expenses:  []models.Expense{expense("f", "a", 3000), expense("f", "b", 1000)},
			balance:   "10",
			fairShare: "20",
			debtor:    "b",
		},
		{
			name:      "b paid more",
			expenses:  []models.Expense{expense("f", "a", 500), expense("f", "b", 2500)},
			balance:   "-10",
			fairShare: "15",
			debtor:    "a",
		},
		{
			name:      "half cents are kept",
			expenses:  []models.Expense{expense("f", "a", 1)},
			balance:   "0.005",
			fairShare: "0.005",
			debtor:    "b",
		},
		{
			name:      "other payers and families are ignored",
			expenses:  []models.Expense{expense("f", "a", 1000), expense("f", "c", 9999), expense("g", "b", 9999)},
			balance:   "5",
			fairShare: "5",
			debtor:    "b",
		},
		{
			name:      "even split",
			expenses:  []models.Expense{expense("f", "a", 1234), expense("f", "b", 1234)},
			balance:   "0",
			fairShare: "12.34",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settle("f", "a", "b", tt.expenses)

			assert.True(t, s.Balance.Equal(decimal.RequireFromString(tt.balance)), "balance %s", s.Balance)
			assert.True(t, s.FairShare.Equal(decimal.RequireFromString(tt.fairShare)), "fair share %s", s.FairShare)
			assert.Equal(t, s.PaidA.Cents+s.PaidB.Cents, s.Total.Cents)

			debtor, _, amount := s.Debtor()
			assert.Equal(t, tt.debtor, debtor)
			assert.True(t, amount.Equal(s.Balance.Abs()))
			assert.Equal(t, tt.debtor == "", s.Settled())
		})
	}
}

func TestSettleLargeAmountsKeepTheirSign(t *testing.T) {
	big := int64(math.MaxInt64 / 2)
	s := Settle("f", "a", "b", []models.Expense{expense("f", "a", big), expense("f", "a", big)})

	paid := decimal.New(2*big, -2)
	assert.Equal(t, 2*big, s.Total.Cents)
	assert.Equal(t, 1, s.Balance.Sign())
	assert.True(t, s.Balance.Equal(paid.Div(decimal.NewFromInt(2))), "balance %s", s.Balance)
	assert.True(t, s.FairShare.Equal(s.Balance))

	debtor, creditor, _ := s.Debtor()
	assert.Equal(t, "b", debtor)
	assert.Equal(t, "a", creditor)
}

func TestSettleIsAntisymmetric(t *testing.T) {
	ledger := []models.Expense{expense("f", "a", 4321), expense("f", "b", 1234), expense("f", "a", 7)}

	ab := Settle("f", "a", "b", ledger)
	ba := Settle("f", "b", "a", ledger)

	assert.True(t, ab.Balance.Equal(ba.Balance.Neg()))
	assert.True(t, ab.FairShare.Equal(ba.FairShare))
}
