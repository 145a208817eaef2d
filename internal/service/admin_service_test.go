package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usos/internal/models"
	"usos/internal/notify"
	"usos/internal/repository"
)

func TestAdminCreateFamilyAndUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.admin()

	family, err := svc.CreateFamily(ctx, "abc234")
	require.NoError(t, err)
	assert.Equal(t, "ABC234", family.InviteCode)

	_, err = svc.CreateFamily(ctx, "ABC234")
	assert.True(t, IsConflict(err))
	_, err = svc.CreateFamily(ctx, "bad")
	assert.True(t, IsValidation(err))

	random, err := svc.CreateFamily(ctx, "")
	require.NoError(t, err)
	assert.True(t, ValidInviteCode(random.InviteCode))

	u, err := svc.CreateUser(ctx, "zoe@example.com", "Zoe", &family.ID)
	require.NoError(t, err)
	assert.Equal(t, family.ID, *env.reload(t, u.ID).FamilyID)

	missing := "missing"
	_, err = svc.CreateUser(ctx, "x@example.com", "", &missing)
	assert.True(t, IsNotFound(err))

	families, err := svc.ListFamilies(ctx)
	require.NoError(t, err)
	assert.Len(t, families, 2)
}

func TestAdminLinkPartners(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.admin()
	familyID := env.paired(t)
	env.user(t, "carol")

	require.NoError(t, svc.LinkPartners(ctx, "alice", "carol", familyID))

	alice := env.reload(t, "alice")
	carol := env.reload(t, "carol")
	bob := env.reload(t, "bob")
	assert.Equal(t, "carol", *alice.PartnerID)
	assert.Equal(t, "alice", *carol.PartnerID)
	assert.Equal(t, familyID, *carol.FamilyID)
	assert.Nil(t, bob.PartnerID, "the former partner is unlinked")
	assert.False(t, bob.HasFamily(), "the family holds only the new pair")

	assert.ErrorIs(t, svc.LinkPartners(ctx, "alice", "alice", familyID), ErrSameUser)
	assert.True(t, IsNotFound(svc.LinkPartners(ctx, "alice", "ghost", familyID)))
}

func TestAdminResetAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	familyID := env.paired(t)
	_, err := env.ledger().RecordExpense(ctx, familyID, "alice", models.Cents(100), "x", "")
	require.NoError(t, err)

	deleted, err := env.admin().ResetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted["users"])
	assert.Equal(t, int64(1), deleted["expenses"])

	families, err := env.families.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, families)
	assert.Contains(t, env.events.actions(notify.EntityFamily), notify.ActionReset)
}

func TestBackupRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	familyID := env.paired(t)
	ledger := env.ledger()
	_, err := ledger.RecordExpense(ctx, familyID, "alice", models.Cents(1999), "Dinner", "food")
	require.NoError(t, err)
	goal, err := ledger.CreateSavingsGoal(ctx, familyID, "Trip", models.Cents(50000), "")
	require.NoError(t, err)
	_, err = ledger.Contribute(ctx, goal.ID, models.Cents(700))
	require.NoError(t, err)

	backups := NewBackupService(env.db, repository.NewAdminRepository(env.db), env.logger)

	var buf bytes.Buffer
	exported, err := backups.ExportToWriter(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"families": 1, "users": 2, "join_requests": 1, "expenses": 1, "savings_goals": 1,
	}, exported.Counts())

	imported, err := backups.ImportFromReader(ctx, &buf, true)
	require.NoError(t, err)
	assert.Equal(t, exported.Counts(), imported.Counts())

	alice := env.reload(t, "alice")
	require.NotNil(t, alice.PartnerID)
	assert.Equal(t, "bob", *alice.PartnerID)

	s, err := ledger.SettleUpForFamily(ctx, familyID)
	require.NoError(t, err)
	assert.Equal(t, int64(1999), s.Total.Cents)

	restored, err := ledger.GetSavingsGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), restored.Current.Cents)
}

func TestBackupRejectsUnknownVersion(t *testing.T) {
	env := newTestEnv(t)
	backups := NewBackupService(env.db, repository.NewAdminRepository(env.db), env.logger)

	_, err := backups.ImportFromReader(context.Background(), bytes.NewBufferString(`{"version":"9"}`), false)
	assert.ErrorContains(t, err, "unsupported backup version")
}
