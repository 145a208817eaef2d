package security

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	svc, err := NewTokenService(testSecret, "usos", time.Hour)
	require.NoError(t, err)

	token, expires, err := svc.Issue("user-1", "a@example.com", "Alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	session, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "a@example.com", session.Email)
	assert.False(t, session.Admin)

	admin, _, err := svc.IssueAdmin("admin")
	require.NoError(t, err)
	session, err = svc.Verify(admin)
	require.NoError(t, err)
	assert.True(t, session.Admin)
}

func TestTokenRejections(t *testing.T) {
	svc, err := NewTokenService(testSecret, "usos", time.Hour)
	require.NoError(t, err)
	token, _, err := svc.Issue("user-1", "", "")
	require.NoError(t, err)

	other, err := NewTokenService(strings.Repeat("x", 32), "usos", time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	otherIssuer, err := NewTokenService(testSecret, "someone-else", time.Hour)
	require.NoError(t, err)
	_, err = otherIssuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	_, err = svc.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = NewTokenService("short", "usos", time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestSessionContext(t *testing.T) {
	assert.Nil(t, SessionFromContext(context.Background()))
	ctx := WithSession(context.Background(), &Session{UserID: "u"})
	assert.Equal(t, "u", SessionFromContext(ctx).UserID)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong horse"), ErrPasswordMismatch)
	assert.ErrorIs(t, CheckPassword("", "anything"), ErrPasswordMismatch)

	_, err = HashPassword("short")
	assert.Error(t, err)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "request %d", i)
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "visitors are independent")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"), "tokens refill after the window")

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 2, rl.cleanup())
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", GetClientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.3")
	assert.Equal(t, "203.0.113.7", GetClientIP(r))
}
