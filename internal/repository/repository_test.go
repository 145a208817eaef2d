package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usos/internal/database"
	"usos/internal/models"
)

func createTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, users *UserRepository, id, email string, at time.Time) {
	t.Helper()
	require.NoError(t, users.Create(context.Background(), &models.User{
		ID: id, Email: email, DisplayName: id, AvatarColor: models.AvatarColors[0], CreatedAt: at,
	}))
}

func TestFamilyAndUserLifecycle(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	families := NewFamilyRepository(db)
	users := NewUserRepository(db)
	now := time.Now().UTC()

	require.NoError(t, families.Create(ctx, &models.Family{ID: "fam-1", InviteCode: "ABC234", CreatedAt: now}))
	err := families.Create(ctx, &models.Family{ID: "fam-2", InviteCode: "ABC234", CreatedAt: now})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err), "duplicate invite code is a unique violation")

	found, err := families.GetByInviteCode(ctx, "ABC234")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "fam-1", found.ID)

	missing, err := families.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	seedUser(t, users, "alice", "alice@example.com", now)
	seedUser(t, users, "bob", "bob@example.com", now.Add(time.Second))

	ok, err := users.AssignFamily(ctx, "alice", "fam-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = users.AssignFamily(ctx, "alice", "fam-1")
	require.NoError(t, err)
	assert.False(t, ok, "already assigned")

	ok, err = users.SetPartnerIfUnset(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	alice, err := users.GetByID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, alice.FamilyID)
	assert.Equal(t, "fam-1", *alice.FamilyID)
	require.NotNil(t, alice.PartnerID)
	assert.Equal(t, "bob", *alice.PartnerID)

	count, err := families.CountMembers(ctx, "fam-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	bob, err := users.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Nil(t, bob.FamilyID)
}

func TestJoinRequestRepository(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	families := NewFamilyRepository(db)
	users := NewUserRepository(db)
	requests := NewJoinRequestRepository(db)
	now := time.Now().UTC()

	require.NoError(t, families.Create(ctx, &models.Family{ID: "fam-1", InviteCode: "ABC234", CreatedAt: now}))
	seedUser(t, users, "owner", "owner@example.com", now)
	seedUser(t, users, "late", "late@example.com", now)
	seedUser(t, users, "early", "early@example.com", now)

	require.NoError(t, requests.Create(ctx, &models.JoinRequest{
		ID: "req-late", FamilyID: "fam-1", UserID: "late", Status: models.JoinRequestPending, CreatedAt: now,
	}))
	require.NoError(t, requests.Create(ctx, &models.JoinRequest{
		ID: "req-early", FamilyID: "fam-1", UserID: "early", Status: models.JoinRequestPending, CreatedAt: now.Add(-time.Hour),
	}))

	pending, err := requests.ListPendingByFamily(ctx, "fam-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "req-early", pending[0].ID, "oldest first")
	assert.Equal(t, "early@example.com", pending[0].RequesterEmail)

	owner := "owner"
	ok, err := requests.Resolve(ctx, "req-late", models.JoinRequestDeclined, &owner, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = requests.Resolve(ctx, "req-late", models.JoinRequestApproved, &owner, now)
	require.NoError(t, err)
	assert.False(t, ok, "resolved requests stay resolved")

	resolved, err := requests.GetByID(ctx, "req-late")
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestDeclined, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "owner", *resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)

	expired, err := requests.ExpireStale(ctx, now.Add(-30*time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	stillPending, err := requests.GetPendingByUser(ctx, "early")
	require.NoError(t, err)
	assert.Nil(t, stillPending)
}

func TestLedgerRepositories(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, NewFamilyRepository(db).Create(ctx, &models.Family{ID: "fam-1", InviteCode: "ABC234", CreatedAt: now}))
	seedUser(t, NewUserRepository(db), "alice", "alice@example.com", now)

	expenses := NewExpenseRepository(db)
	for i, id := range []string{"exp-1", "exp-2", "exp-3"} {
		require.NoError(t, expenses.Create(ctx, &models.Expense{
			ID: id, FamilyID: "fam-1", PaidBy: "alice", Amount: models.Cents(int64(100 * (i + 1))),
			Description: id, Category: models.DefaultExpenseCategory,
			SpentAt: now.Add(time.Duration(i) * time.Minute), CreatedAt: now,
		}))
	}

	list, err := expenses.ListByFamily(ctx, "fam-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "exp-3", list[0].ID, "newest first")
	assert.Equal(t, int64(300), list[0].Amount.Cents)

	got, err := expenses.GetByID(ctx, "exp-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(200), got.Amount.Cents)

	missing, err := expenses.GetByID(ctx, "exp-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	goals := NewSavingsGoalRepository(db)
	require.NoError(t, goals.Create(ctx, &models.SavingsGoal{
		ID: "goal-1", FamilyID: "fam-1", Title: "Trip", Target: models.Cents(1000), Emoji: "✈️", CreatedAt: now,
	}))

	ok, err := goals.AddContribution(ctx, "goal-1", 1500)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = goals.AddContribution(ctx, "missing", 100)
	require.NoError(t, err)
	assert.False(t, ok)

	goal, err := goals.GetByID(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), goal.Current.Cents, "overflow past target is kept")
}

func TestResetAll(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	families := NewFamilyRepository(db)
	users := NewUserRepository(db)

	require.NoError(t, families.Create(ctx, &models.Family{ID: "fam-1", InviteCode: "ABC234", CreatedAt: now}))
	seedUser(t, users, "alice", "alice@example.com", now)
	seedUser(t, users, "bob", "bob@example.com", now)
	_, err := users.ForceMembership(ctx, "alice", strPtr("fam-1"), strPtr("bob"))
	require.NoError(t, err)
	_, err = users.ForceMembership(ctx, "bob", strPtr("fam-1"), strPtr("alice"))
	require.NoError(t, err)

	deleted, err := NewAdminRepository(db).ResetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted["users"])
	assert.Equal(t, int64(1), deleted["families"])

	all, err := families.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func strPtr(s string) *string { return &s }
