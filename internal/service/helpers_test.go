package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"usos/internal/database"
	"usos/internal/log"
	"usos/internal/models"
	"usos/internal/notify"
	"usos/internal/repository"
)

// recorder collects every event it is notified of
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) actions(entity notify.EntityType) []notify.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Action
	for _, e := range r.events {
		if e.EntityType == entity {
			out = append(out, e.Action)
		}
	}
	return out
}

// last returns the most recent event about entity
func (r *recorder) last(entity notify.EntityType) notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EntityType == entity {
			return r.events[i]
		}
	}
	return notify.Event{}
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db       *database.DB
	families *repository.FamilyRepository
	users    *repository.UserRepository
	requests *repository.JoinRequestRepository
	expenses *repository.ExpenseRepository
	goals    *repository.SavingsGoalRepository
	events   *recorder
	logger   *log.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &testEnv{
		db:       db,
		families: repository.NewFamilyRepository(db),
		users:    repository.NewUserRepository(db),
		requests: repository.NewJoinRequestRepository(db),
		expenses: repository.NewExpenseRepository(db),
		goals:    repository.NewSavingsGoalRepository(db),
		events:   &recorder{},
		logger:   log.Discard(),
	}
}

func (e *testEnv) pairing(opts ...PairingOption) *PairingService {
	return NewPairingService(e.db, e.families, e.users, e.requests, e.events, e.logger, opts...)
}

func (e *testEnv) ledger() *LedgerService {
	return NewLedgerService(e.db, e.families, e.users, e.expenses, e.goals, e.events, e.logger)
}

func (e *testEnv) profiles() *ProfileService {
	return NewProfileService(e.users, e.events, e.logger)
}

func (e *testEnv) admin() *AdminService {
	return NewAdminService(e.db, repository.NewAdminRepository(e.db), e.families, e.users, e.profiles(), e.events, e.logger)
}

func (e *testEnv) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.profiles().EnsureProfile(context.Background(), id, id+"@example.com", "")
	require.NoError(t, err)
	return u
}

func (e *testEnv) reload(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

// paired creates alice and bob sharing a family and returns its id
func (e *testEnv) paired(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	svc := e.pairing()
	e.user(t, "alice")
	e.user(t, "bob")

	family, err := svc.CreateFamily(ctx, "alice")
	require.NoError(t, err)
	req, err := svc.RequestJoin(ctx, "bob", family.InviteCode)
	require.NoError(t, err)
	_, _, err = svc.ApproveRequest(ctx, req.ID, "alice")
	require.NoError(t, err)
	return family.ID
}

// sequence returns a generator yielding codes in order, then the last one forever
func sequence(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[min(i, len(codes)-1)]
		i++
		return code, nil
	}
}
