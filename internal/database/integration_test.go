package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(filepath.Join(t.TempDir(), "usos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsCreateTables(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"families", "users", "join_requests", "expenses", "savings_goals"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usos.db")

	first, err := Initialize(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Initialize(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func seedFamilyAndUser(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, "INSERT INTO families (id, invite_code, created_at) VALUES (?, ?, ?)", "fam-1", "ABC234", now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)", "user-1", "a@example.com", now)
	require.NoError(t, err)
}

func TestExecConditional(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFamilyAndUser(t, db)

	matched, err := db.ExecConditional(ctx, "UPDATE users SET family_id = ? WHERE id = ? AND family_id IS NULL", "fam-1", "user-1")
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = db.ExecConditional(ctx, "UPDATE users SET family_id = ? WHERE id = ? AND family_id IS NULL", "fam-1", "user-1")
	require.NoError(t, err)
	assert.False(t, matched, "second update must not match")
}

func TestPendingRequestUniqueIndex(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFamilyAndUser(t, db)
	now := time.Now().UTC()

	insert := "INSERT INTO join_requests (id, family_id, user_id, status, created_at) VALUES (?, ?, ?, ?, ?)"
	_, err := db.ExecContext(ctx, insert, "req-1", "fam-1", "user-1", "pending", now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "req-2", "fam-1", "user-1", "pending", now)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))

	// resolved requests do not count
	_, err = db.ExecContext(ctx, insert, "req-3", "fam-1", "user-1", "declined", now)
	assert.NoError(t, err)
}

func TestCheckConstraints(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFamilyAndUser(t, db)
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx, `INSERT INTO expenses (id, family_id, paid_by, amount_cents, description, spent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, "exp-1", "fam-1", "user-1", 0, "nothing", now, now)
	require.Error(t, err)
	assert.False(t, db.IsUniqueViolation(err))
}

func TestWithTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFamilyAndUser(t, db)

	errBoom := errors.New("boom")
	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE users SET display_name = ? WHERE id = ?", "rolled back", "user-1")
		require.NoError(t, err)
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	var name string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT display_name FROM users WHERE id = ?", "user-1").Scan(&name))
	assert.Empty(t, name)

	err = db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE users SET display_name = ? WHERE id = ?", "committed", "user-1")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, db.QueryRowContext(ctx, "SELECT display_name FROM users WHERE id = ?", "user-1").Scan(&name))
	assert.Equal(t, "committed", name)
}

func TestConcurrentIncrements(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFamilyAndUser(t, db)

	_, err := db.ExecContext(ctx, `INSERT INTO savings_goals (id, family_id, title, target_cents, current_cents, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`, "goal-1", "fam-1", "Trip", 1000, time.Now().UTC())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.ExecConditional(ctx, "UPDATE savings_goals SET current_cents = current_cents + ? WHERE id = ?", 5, "goal-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var current int64
	require.NoError(t, db.QueryRowContext(ctx, "SELECT current_cents FROM savings_goals WHERE id = ?", "goal-1").Scan(&current))
	assert.Equal(t, int64(100), current)
}
