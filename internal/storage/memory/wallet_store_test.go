package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

func TestWalletStore_InsertAndGet(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	w := &domain.Wallet{
		Address: "tz1a",
		Alias:   "main",
		AddedAt: "2025-01-01T00:00:00Z",
	}
	require.NoError(t, store.Insert(ctx, w))

	got, err := store.GetByAddress(ctx, "tz1a")
	require.NoError(t, err)
	assert.Equal(t, "tz1a", got.Address)
	assert.Equal(t, "main", got.Alias)
}

func TestWalletStore_InsertDuplicate(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.Wallet{Address: "tz1a"}))
	err := store.Insert(ctx, &domain.Wallet{Address: "tz1a"})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestWalletStore_GetByAddressNotFound(t *testing.T) {
	_, err := NewWalletStore().GetByAddress(context.Background(), "tz1missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWalletStore_GetAllSortedByAddress(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	for _, a := range []string{"tz1c", "tz1a", "tz1b"} {
		require.NoError(t, store.Insert(ctx, &domain.Wallet{Address: a}))
	}

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "tz1a", got[0].Address)
	assert.Equal(t, "tz1b", got[1].Address)
	assert.Equal(t, "tz1c", got[2].Address)
}

func TestWalletStore_SetDelegate(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.Wallet{Address: "tz1a"}))
	require.NoError(t, store.SetDelegate(ctx, "tz1a", "tz1baker"))

	got, err := store.GetByAddress(ctx, "tz1a")
	require.NoError(t, err)
	assert.Equal(t, "tz1baker", got.Delegate)

	err = store.SetDelegate(ctx, "tz1missing", "tz1baker")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWalletStore_Delete(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.Wallet{Address: "tz1a"}))
	require.NoError(t, store.Delete(ctx, "tz1a"))

	_, err := store.GetByAddress(ctx, "tz1a")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.ErrorIs(t, store.Delete(ctx, "tz1a"), storage.ErrNotFound)
}
