package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "12.50", want: 1250},
		{input: "12.5", want: 1250},
		{input: " 7 ", want: 700},
		{input: "0.005", want: 1},
		{input: "0.004", want: 0},
		{input: "12.345", want: 1235},
		{input: "-3.999", want: -400},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "NaN", wantErr: true},
		{input: "Inf", wantErr: true},
		{input: "1e30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMoney(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Cents)
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Cents(1205)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"12.05"}`, string(out))

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 30, "b": "10.10"}`), &in))
	assert.Equal(t, int64(3000), in.A.Cents)
	assert.Equal(t, int64(1010), in.B.Cents)

	assert.Error(t, json.Unmarshal([]byte(`{"a": "lots"}`), &in))
}

func TestSavingsGoalProgress(t *testing.T) {
	goal := SavingsGoal{Target: Cents(1000), Current: Cents(250)}
	assert.InDelta(t, 0.25, goal.Progress(), 1e-9)
	assert.False(t, goal.Reached())

	goal.Current = Cents(1500)
	assert.Equal(t, 1.0, goal.Progress(), "overflow is capped for display")
	assert.True(t, goal.Reached())
}

func TestSettlementDebtor(t *testing.T) {
	s := Settlement{UserA: "a", UserB: "b", Balance: decimal.RequireFromString("10")}
	debtor, creditor, amount := s.Debtor()
	assert.Equal(t, "b", debtor)
	assert.Equal(t, "a", creditor)
	assert.True(t, amount.Equal(decimal.NewFromInt(10)))

	s.Balance = decimal.RequireFromString("-0.005")
	debtor, creditor, amount = s.Debtor()
	assert.Equal(t, "a", debtor)
	assert.Equal(t, "b", creditor)
	assert.Equal(t, "0.005", amount.String())

	s.Balance = decimal.Zero
	assert.True(t, s.Settled())
	debtor, _, _ = s.Debtor()
	assert.Empty(t, debtor)
}

func TestJoinRequestIsStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req := JoinRequest{Status: JoinRequestPending, CreatedAt: now.Add(-48 * time.Hour)}

	tests := []struct {
		name   string
		ttl    time.Duration
		status JoinRequestStatus
		want   bool
	}{
		{"no ttl never expires", 0, JoinRequestPending, false},
		{"older than ttl", 24 * time.Hour, JoinRequestPending, true},
		{"younger than ttl", 72 * time.Hour, JoinRequestPending, false},
		{"resolved requests never go stale", 24 * time.Hour, JoinRequestApproved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := req
			r.Status = tt.status
			assert.Equal(t, tt.want, r.IsStale(tt.ttl, now))
		})
	}
}

func TestFamilyWithMembers(t *testing.T) {
	familyID := "fam-1"
	f := FamilyWithMembers{
		Family:  Family{ID: familyID},
		Members: []User{{ID: "a", FamilyID: &familyID}},
	}
	assert.False(t, f.IsComplete())
	assert.NotNil(t, f.Member("a"))
	assert.Nil(t, f.Member("b"))
	assert.True(t, f.Members[0].InFamily(familyID))

	f.Members = append(f.Members, User{ID: "b", FamilyID: &familyID})
	assert.True(t, f.IsComplete())
}
