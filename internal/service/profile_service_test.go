package service

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usos/internal/models"
)

func TestEnsureProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.profiles()

	u, err := svc.EnsureProfile(ctx, "u1", " Jo@Example.com ", "")
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", u.Email)
	assert.Equal(t, "jo", u.DisplayName)
	assert.True(t, slices.Contains(models.AvatarColors, u.AvatarColor))
	assert.False(t, u.HasFamily())

	again, err := svc.EnsureProfile(ctx, "u1", "other@example.com", "Other")
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", again.Email, "existing profiles are returned unchanged")

	_, err = svc.EnsureProfile(ctx, "u2", "jo@example.com", "")
	assert.True(t, IsConflict(err))
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.EnsureProfile(ctx, "u3", "", "")
	assert.ErrorIs(t, err, ErrEmailRequired)
	_, err = svc.EnsureProfile(ctx, "u3", "not-an-email", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestGetPartner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.profiles()
	env.user(t, "solo")

	partner, err := svc.GetPartner(ctx, "solo")
	require.NoError(t, err)
	assert.Nil(t, partner)

	env.paired(t)
	partner, err = svc.GetPartner(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, partner)
	assert.Equal(t, "bob", partner.ID)

	_, err = svc.GetProfile(ctx, "ghost")
	assert.True(t, IsNotFound(err))
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.profiles()
	env.user(t, "alice")

	u, err := svc.UpdateProfile(ctx, "alice", "Alice A.", "#ff6b6b")
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", u.DisplayName)
	assert.Equal(t, "#FF6B6B", u.AvatarColor)

	stored := env.reload(t, "alice")
	assert.Equal(t, "Alice A.", stored.DisplayName)

	_, err = svc.UpdateProfile(ctx, "alice", "", "#000000")
	assert.ErrorIs(t, err, ErrInvalidAvatarColor)
	assert.True(t, IsValidation(err))
}
