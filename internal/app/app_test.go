package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usos/internal/config"
	"usos/internal/log"
	"usos/internal/notify"
)

type collector struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *collector) Notify(_ context.Context, e notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DatabaseType: "sqlite",
		DatabasePath: filepath.Join(t.TempDir(), "app.db"),
		JWTSecret:    "0123456789abcdef0123456789abcdef",
		JWTIssuer:    "usos-test",
	}
}

func TestOpenAndWire(t *testing.T) {
	a, err := Open(testConfig(t), log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	assert.Nil(t, a.AMQP)

	events := &collector{}
	a.Wire(events)

	ctx := context.Background()
	_, err = a.Profiles.EnsureProfile(ctx, "alice", "alice@example.com", "")
	require.NoError(t, err)
	family, err := a.Pairing.CreateFamily(ctx, "alice")
	require.NoError(t, err)

	families, err := a.Admin.ListFamilies(ctx)
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, family.ID, families[0].ID)

	events.mu.Lock()
	defer events.mu.Unlock()
	assert.NotEmpty(t, events.events, "services notify the local notifier without a broker")
}

func TestOpenRejectsWeakSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = "short"

	_, err := Open(cfg, log.Discard())
	assert.Error(t, err)
}

func TestSubscribersSkipUnconfigured(t *testing.T) {
	a, err := Open(testConfig(t), log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	subs, err := a.Subscribers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}
