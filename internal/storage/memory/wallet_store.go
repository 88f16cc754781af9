package memory

import (
	"context"
	"sort"
	"sync"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Wallet // keyed by address
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{data: make(map[string]*domain.Wallet)}
}

// Insert adds a new wallet. Returns ErrDuplicateKey if the address exists.
func (s *WalletStore) Insert(_ context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[w.Address]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *w
	s.data[w.Address] = &cp
	return nil
}

// GetByAddress retrieves a wallet. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByAddress(_ context.Context, address string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

// GetAll retrieves all wallets ordered by address.
func (s *WalletStore) GetAll(_ context.Context) ([]*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Wallet
	for _, w := range s.data {
		cp := *w
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// SetDelegate updates a wallet's current delegate address.
func (s *WalletStore) SetDelegate(_ context.Context, address, delegate string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.data[address]
	if !ok {
		return storage.ErrNotFound
	}
	w.Delegate = delegate
	return nil
}

// Delete removes a wallet. Returns ErrNotFound if not exists.
func (s *WalletStore) Delete(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[address]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, address)
	return nil
}

var _ storage.WalletStore = (*WalletStore)(nil)
