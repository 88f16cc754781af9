package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

func TestWalletStore_InsertAndGetByAddress(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWalletStore(pool)

	w := &domain.Wallet{
		Address:  "tz1TestWalletAAAA",
		Alias:    "main",
		Delegate: "tz1SomeBaker",
		AddedAt:  "2025-01-01T00:00:00Z",
	}
	require.NoError(t, store.Insert(ctx, w))

	got, err := store.GetByAddress(ctx, "tz1TestWalletAAAA")
	require.NoError(t, err)
	assert.Equal(t, w.Address, got.Address)
	assert.Equal(t, w.Alias, got.Alias)
	assert.Equal(t, w.Delegate, got.Delegate)
}

func TestWalletStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWalletStore(pool)

	w := &domain.Wallet{Address: "tz1DupWallet", AddedAt: "2025-01-01T00:00:00Z"}
	require.NoError(t, store.Insert(ctx, w))

	err := store.Insert(ctx, w)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestWalletStore_GetByAddressNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	_, err := store.GetByAddress(context.Background(), "tz1Missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWalletStore_GetAllOrderedByAddress(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWalletStore(pool)

	for _, a := range []string{"tz1ccc", "tz1aaa", "tz1bbb"} {
		require.NoError(t, store.Insert(ctx, &domain.Wallet{Address: a, AddedAt: "2025-01-01T00:00:00Z"}))
	}

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "tz1aaa", got[0].Address)
	assert.Equal(t, "tz1bbb", got[1].Address)
	assert.Equal(t, "tz1ccc", got[2].Address)
}

func TestWalletStore_SetDelegateAndDelete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWalletStore(pool)

	require.NoError(t, store.Insert(ctx, &domain.Wallet{Address: "tz1aaa", AddedAt: "2025-01-01T00:00:00Z"}))

	require.NoError(t, store.SetDelegate(ctx, "tz1aaa", "tz1NewBaker"))
	got, err := store.GetByAddress(ctx, "tz1aaa")
	require.NoError(t, err)
	assert.Equal(t, "tz1NewBaker", got.Delegate)

	require.ErrorIs(t, store.SetDelegate(ctx, "tz1missing", "tz1NewBaker"), storage.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "tz1aaa"))
	_, err = store.GetByAddress(ctx, "tz1aaa")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, "tz1aaa"), storage.ErrNotFound)
}
