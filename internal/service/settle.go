package service

import (
	"github.com/shopspring/decimal"

	"usos/internal/models"
)

var half = decimal.New(5, -1)

// Settle folds the ledger into the balance between userA and userB.
// Expenses paid by anyone else are ignored. Half cents are kept exact:
// Balance is (paidA - paidB) / 2 and never rounded. The fold runs in
// decimal so large ledgers cannot wrap around.
func Settle(familyID, userA, userB string, expenses []models.Expense) models.Settlement {
	paidA, paidB := decimal.Zero, decimal.Zero
	for _, e := range expenses {
		if e.FamilyID != familyID {
			continue
		}
		switch e.PaidBy {
		case userA:
			paidA = paidA.Add(e.Amount.Decimal())
		case userB:
			paidB = paidB.Add(e.Amount.Decimal())
		}
	}

	total := paidA.Add(paidB)
	return models.Settlement{
		FamilyID:  familyID,
		UserA:     userA,
		UserB:     userB,
		PaidA:     toMoney(paidA),
		PaidB:     toMoney(paidB),
		Total:     toMoney(total),
		FairShare: total.Mul(half),
		Balance:   paidA.Sub(paidB).Mul(half),
	}
}

// toMoney converts a sum of whole cents back to Money
func toMoney(d decimal.Decimal) models.Money {
	return models.Cents(d.Shift(2).IntPart())
}
