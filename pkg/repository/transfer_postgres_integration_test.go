//go:build integration

package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"fund_transfer_back/models"
)

// setupPostgres starts a disposable PostgreSQL container with the schema applied.
func setupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fund_transfer"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, Migrate(db))
	// a second run must be a no-op
	require.NoError(t, Migrate(db))
	return db
}

func TestIntegration_TransferPostgres(t *testing.T) {
	db := setupPostgres(t)
	store := NewTransferPostgres(db)
	ctx := context.Background()

	t.Run("insert and find", func(t *testing.T) {
		email := "owner@example.com"
		tr := newQueued("tx-insert")
		tr.Value = decimal.RequireFromString("100.25")
		tr.Email = &email

		id, err := store.Insert(ctx, tr)
		require.NoError(t, err)
		assert.Equal(t, "tx-insert", id)

		got, err := store.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInQueue, got.Status)
		assert.True(t, decimal.RequireFromString("100.25").Equal(got.Value))
		assert.Equal(t, "owner@example.com", got.Contact())
		assert.Nil(t, got.ErrorMessage)
		assert.Zero(t, got.Attempts)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := store.Insert(ctx, newQueued("tx-dup"))
		require.NoError(t, err)

		_, err = store.Insert(ctx, newQueued("tx-dup"))
		assert.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("non-positive value", func(t *testing.T) {
		tr := newQueued("tx-zero")
		tr.Value = decimal.Zero
		_, err := store.Insert(ctx, tr)
		assert.ErrorIs(t, err, ErrNonPositiveValue)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("claim is a compare-and-set", func(t *testing.T) {
		_, err := store.Insert(ctx, newQueued("tx-claim"))
		require.NoError(t, err)

		ok, err := store.Transition(ctx, "tx-claim", models.StatusInQueue, models.StatusProcessing, "")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Transition(ctx, "tx-claim", models.StatusInQueue, models.StatusProcessing, "")
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := store.FindByID(ctx, "tx-claim")
		require.NoError(t, err)
		assert.Equal(t, models.StatusProcessing, got.Status)
		assert.Equal(t, 1, got.Attempts)

		// requeue does not count as an attempt
		ok, err = store.Transition(ctx, "tx-claim", models.StatusProcessing, models.StatusInQueue, "")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = store.Transition(ctx, "tx-claim", models.StatusInQueue, models.StatusProcessing, "")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err = store.FindByID(ctx, "tx-claim")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Attempts)
	})

	t.Run("concurrent claims", func(t *testing.T) {
		_, err := store.Insert(ctx, newQueued("tx-race"))
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.Transition(ctx, "tx-race", models.StatusInQueue, models.StatusProcessing, "")
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		got, err := store.FindByID(ctx, "tx-race")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Attempts)
	})

	t.Run("error message follows status", func(t *testing.T) {
		_, err := store.Insert(ctx, newQueued("tx-error"))
		require.NoError(t, err)
		_, err = store.Transition(ctx, "tx-error", models.StatusInQueue, models.StatusProcessing, "")
		require.NoError(t, err)

		_, err = store.Transition(ctx, "tx-error", models.StatusProcessing, models.StatusError, "")
		assert.ErrorIs(t, err, ErrMissingMessage)

		ok, err := store.Transition(ctx, "tx-error", models.StatusProcessing, models.StatusError, "insufficient funds")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := store.FindByID(ctx, "tx-error")
		require.NoError(t, err)
		assert.Equal(t, models.StatusError, got.Status)
		assert.Equal(t, "insufficient funds", got.Message())

		_, err = store.Transition(ctx, "tx-error", models.StatusError, models.StatusInQueue, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)

		ok, err = store.UpdateStatus(ctx, "tx-error", models.StatusInQueue, "")
		require.NoError(t, err)
		assert.True(t, ok)
		got, err = store.FindByID(ctx, "tx-error")
		require.NoError(t, err)
		assert.Nil(t, got.ErrorMessage)
	})

	t.Run("update unknown id", func(t *testing.T) {
		ok, err := store.UpdateStatus(ctx, "missing", models.StatusInQueue, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestIntegration_TransferPostgres_FindByStatusOrder(t *testing.T) {
	db := setupPostgres(t)
	store := NewTransferPostgres(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"tx-c", "tx-a", "tx-b"} {
		tr := newQueued(id)
		tr.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := store.Insert(ctx, tr)
		require.NoError(t, err)
	}
	_, err := store.Transition(ctx, "tx-a", models.StatusInQueue, models.StatusProcessing, "")
	require.NoError(t, err)

	queued, err := store.FindByStatus(ctx, models.StatusInQueue)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "tx-c", queued[0].TransactionID)
	assert.Equal(t, "tx-b", queued[1].TransactionID)

	processing, err := store.FindByStatus(ctx, models.StatusProcessing)
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, "tx-a", processing[0].TransactionID)
}

func TestIntegration_LegJournalPostgres(t *testing.T) {
	db := setupPostgres(t)
	store := NewTransferPostgres(db)
	journal := NewLegJournalPostgres(db)
	ctx := context.Background()

	_, err := store.Insert(ctx, newQueued("tx-1"))
	require.NoError(t, err)

	has, err := journal.HasLeg(ctx, "tx-1", models.LegDebit)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, journal.MarkLeg(ctx, "tx-1", models.LegDebit))
	require.NoError(t, journal.MarkLeg(ctx, "tx-1", models.LegDebit))

	has, err = journal.HasLeg(ctx, "tx-1", models.LegDebit)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = journal.HasLeg(ctx, "tx-1", models.LegCredit)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, journal.ClearLegs(ctx, "tx-1"))
	has, err = journal.HasLeg(ctx, "tx-1", models.LegDebit)
	require.NoError(t, err)
	assert.False(t, has)
}
