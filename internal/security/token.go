package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrWeakSecret   = errors.New("token secret must be at least 32 bytes")
)

// Claims are the JWT claims carried by a bearer token
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin,omitempty"`
}

// Session is the authenticated caller of a request
type Session struct {
	UserID    string
	Email     string
	Name      string
	Admin     bool
	ExpiresAt time.Time
}

// TokenService mints and verifies HS256 bearer tokens
type TokenService struct {
	secret   []byte
	issuer   string
	duration time.Duration
	now      func() time.Time
}

// NewTokenService creates a token service. Tokens expire after duration.
func NewTokenService(secret, issuer string, duration time.Duration) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecret
	}
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	return &TokenService{
		secret:   []byte(secret),
		issuer:   issuer,
		duration: duration,
		now:      time.Now,
	}, nil
}

// Issue mints a token for a user
func (s *TokenService) Issue(userID, email, name string) (string, time.Time, error) {
	return s.issue(Claims{Email: email, Name: name}, userID)
}

// IssueAdmin mints a token carrying the admin flag
func (s *TokenService) IssueAdmin(subject string) (string, time.Time, error) {
	return s.issue(Claims{Admin: true}, subject)
}

func (s *TokenService) issue(claims Claims, subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	now := s.now()
	expires := now.Add(s.duration)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses and validates a token
func (s *TokenService) Verify(token string) (*Session, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Admin:     claims.Admin,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

type sessionKey struct{}

// WithSession stores the session in ctx
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session stored by WithSession, or nil
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionKey{}).(*Session)
	return session
}
