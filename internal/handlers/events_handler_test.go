package handlers

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usos/internal/notify"
)

// nextEvent reads lines until an "event:" line and returns its name and data
func nextEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()
	var name string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && name != "":
			return name, strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventStream(t *testing.T) {
	env := newAPIEnv(t)
	familyID := env.pair(t)
	alice := env.token(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/api/events?access_token="+alice, nil)
	require.NoError(t, err)
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	name, data := nextEvent(t, reader)
	require.Equal(t, "connected", name)
	assert.Contains(t, data, familyID)
	assert.Equal(t, 1, env.broker.Subscribers())

	status, body := env.call(t, http.MethodPost, "/api/families/"+familyID+"/expenses", env.token(t, "bob"), map[string]any{"amount": 12})
	require.Equal(t, http.StatusCreated, status, string(body))

	name, data = nextEvent(t, reader)
	assert.Equal(t, "expense.created", name)
	e, err := notify.EventFromJSON([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, familyID, e.FamilyID)
	assert.Equal(t, "bob", e.UserID)

	cancel()
	assert.Eventually(t, func() bool { return env.broker.Subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestEventStreamRequiresAuth(t *testing.T) {
	env := newAPIEnv(t)
	status, _ := env.call(t, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
