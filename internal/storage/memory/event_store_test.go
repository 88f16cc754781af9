package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

func testEvent(id, wallet, ts string, level int64) *domain.TransferEvent {
	return &domain.TransferEvent{
		EventID:   id,
		Wallet:    wallet,
		Timestamp: ts,
		Level:     level,
		OpHash:    "op-" + id,
		Kind:      domain.KindXTZTransfer,
		Direction: domain.DirectionIn,
		Asset:     domain.XTZ,
		Quantity:  1,
	}
}

func TestTransferEventStore_InsertBulkAndGetByWallet(t *testing.T) {
	store := NewTransferEventStore()
	ctx := context.Background()

	events := []*domain.TransferEvent{
		testEvent("e2", "tz1a", "2025-02-01T00:00:00Z", 200),
		testEvent("e1", "tz1a", "2025-01-01T00:00:00Z", 100),
		testEvent("e3", "tz1b", "2025-03-01T00:00:00Z", 300),
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	got, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].EventID)
	assert.Equal(t, "e2", got[1].EventID)
}

func TestTransferEventStore_OrderingTieBreaks(t *testing.T) {
	store := NewTransferEventStore()
	ctx := context.Background()

	ts := "2025-01-01T00:00:00Z"
	events := []*domain.TransferEvent{
		testEvent("zz", "tz1a", ts, 100),
		testEvent("aa", "tz1a", ts, 100),
		testEvent("mm", "tz1a", ts, 99),
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	got, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Level before event ID on equal timestamps.
	assert.Equal(t, "mm", got[0].EventID)
	assert.Equal(t, "aa", got[1].EventID)
	assert.Equal(t, "zz", got[2].EventID)
}

func TestTransferEventStore_InsertBulkDuplicateFailsWholeBatch(t *testing.T) {
	store := NewTransferEventStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.TransferEvent{
		testEvent("e1", "tz1a", "2025-01-01T00:00:00Z", 100),
	}))

	err := store.InsertBulk(ctx, []*domain.TransferEvent{
		testEvent("e2", "tz1a", "2025-02-01T00:00:00Z", 200),
		testEvent("e1", "tz1a", "2025-01-01T00:00:00Z", 100),
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The non-duplicate half of the batch must not have been stored.
	got, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTransferEventStore_InsertBulkIntraBatchDuplicate(t *testing.T) {
	store := NewTransferEventStore()
	err := store.InsertBulk(context.Background(), []*domain.TransferEvent{
		testEvent("e1", "tz1a", "2025-01-01T00:00:00Z", 100),
		testEvent("e1", "tz1a", "2025-01-01T00:00:00Z", 100),
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTransferEventStore_GetByWalletYear(t *testing.T) {
	store := NewTransferEventStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.TransferEvent{
		testEvent("e1", "tz1a", "2024-12-31T23:59:59Z", 1),
		testEvent("e2", "tz1a", "2025-01-01T00:00:00Z", 2),
		testEvent("e3", "tz1a", "2025-12-31T23:59:59Z", 3),
		testEvent("e4", "tz1a", "2026-01-01T00:00:00Z", 4),
	}))

	got, err := store.GetByWalletYear(ctx, "tz1a", 2025)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].EventID)
	assert.Equal(t, "e3", got[1].EventID)
}

func TestTransferEventStore_DeleteByWallet(t *testing.T) {
	store := NewTransferEventStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.TransferEvent{
		testEvent("e1", "tz1a", "2025-01-01T00:00:00Z", 1),
		testEvent("e2", "tz1a", "2025-02-01T00:00:00Z", 2),
		testEvent("e3", "tz1b", "2025-03-01T00:00:00Z", 3),
	}))

	n, err := store.DeleteByWallet(ctx, "tz1a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	assert.Empty(t, got)

	other, err := store.GetByWallet(ctx, "tz1b")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestTransferEventStore_ReturnsCopies(t *testing.T) {
	store := NewTransferEventStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.TransferEvent{
		testEvent("e1", "tz1a", "2025-01-01T00:00:00Z", 1),
	}))

	got, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	got[0].Classification = domain.ClassSwap

	again, err := store.GetByWallet(ctx, "tz1a")
	require.NoError(t, err)
	assert.Empty(t, again[0].Classification, "mutating a result must not touch the store")
}
