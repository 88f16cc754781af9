package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

func testEvent(id, ts string, level int64) *domain.TransferEvent {
	return &domain.TransferEvent{
		EventID:      id,
		Wallet:       "tz1a",
		Timestamp:    ts,
		Level:        level,
		OpHash:       "op-" + id,
		Kind:         domain.KindXTZTransfer,
		Direction:    domain.DirectionIn,
		Counterparty: "tz1other",
		Asset:        domain.XTZ,
		Quantity:     1.5,
		FeeXTZ:       0.00142,
		Quotes: map[domain.Currency]float64{
			domain.CurrencyUSD: 1.23,
			domain.CurrencyGBP: 0.97,
		},
	}
}

func TestEventStore_InsertBulkAndGetByWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferEventStore(pool)

	events := []*domain.TransferEvent{
		testEvent("e2", "2025-02-01T00:00:00Z", 200),
		testEvent("e1", "2025-01-01T00:00:00Z", 100),
		testEvent("e3", "2025-03-01T00:00:00Z", 300),
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	got, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e1", got[0].EventID)
	assert.Equal(t, "e2", got[1].EventID)
	assert.Equal(t, "e3", got[2].EventID)
}

func TestEventStore_QuotesRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferEventStore(pool)

	e := testEvent("e1", "2025-01-01T00:00:00Z", 100)
	require.NoError(t, store.InsertBulk(ctx, []*domain.TransferEvent{e}))

	got, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, e.OpHash, got[0].OpHash)
	assert.Equal(t, e.Quantity, got[0].Quantity)
	assert.Equal(t, e.FeeXTZ, got[0].FeeXTZ)
	assert.Equal(t, 1.23, got[0].Quotes[domain.CurrencyUSD])
	assert.Equal(t, 0.97, got[0].Quotes[domain.CurrencyGBP])
}

func TestEventStore_TimestampTieBreaks(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferEventStore(pool)

	// Same timestamp: level orders first, then event_id.
	a := testEvent("zz", "2025-01-01T00:00:00Z", 100)
	b := testEvent("aa", "2025-01-01T00:00:00Z", 200)
	c := testEvent("mm", "2025-01-01T00:00:00Z", 100)
	require.NoError(t, store.InsertBulk(ctx, []*domain.TransferEvent{a, b, c}))

	got, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "mm", got[0].EventID)
	assert.Equal(t, "zz", got[1].EventID)
	assert.Equal(t, "aa", got[2].EventID)
}

func TestEventStore_DuplicateFailsWholeBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferEventStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.TransferEvent{
		testEvent("e1", "2025-01-01T00:00:00Z", 100),
	}))

	// e1 is a duplicate; the transaction must roll back so e2 is not stored
	// either.
	err := store.InsertBulk(ctx, []*domain.TransferEvent{
		testEvent("e2", "2025-02-01T00:00:00Z", 200),
		testEvent("e1", "2025-01-01T00:00:00Z", 100),
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEventStore_GetByWalletYear(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferEventStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.TransferEvent{
		testEvent("e1", "2024-12-31T23:59:59Z", 100),
		testEvent("e2", "2025-01-01T00:00:00Z", 200),
		testEvent("e3", "2025-12-31T23:59:59Z", 300),
		testEvent("e4", "2026-01-01T00:00:00Z", 400),
	}))

	got, err := store.GetByWalletYear(ctx, "tz1a", 2025)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].EventID)
	assert.Equal(t, "e3", got[1].EventID)
}

func TestEventStore_DeleteByWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferEventStore(pool)

	other := testEvent("e3", "2025-01-01T00:00:00Z", 100)
	other.Wallet = "tz1b"
	require.NoError(t, store.InsertBulk(ctx, []*domain.TransferEvent{
		testEvent("e1", "2025-01-01T00:00:00Z", 100),
		testEvent("e2", "2025-02-01T00:00:00Z", 200),
		other,
	}))

	n, err := store.DeleteByWallet(ctx, "tz1a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := store.GetByWallet(ctx, "tz1b")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEventStore_LargeBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferEventStore(pool)

	var events []*domain.TransferEvent
	for i := 0; i < 500; i++ {
		events = append(events, testEvent(
			fmt.Sprintf("e%04d", i),
			fmt.Sprintf("2025-01-01T%02d:%02d:00Z", i/60%24, i%60),
			int64(i),
		))
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	got, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	assert.Len(t, got, 500)
}
