package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

// TransferEventStore is an in-memory implementation of
// storage.TransferEventStore.
type TransferEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransferEvent // keyed by event ID
}

// NewTransferEventStore creates a new in-memory transfer event store.
func NewTransferEventStore() *TransferEventStore {
	return &TransferEventStore{data: make(map[string]*domain.TransferEvent)}
}

// InsertBulk adds multiple events atomically. Fails the entire batch on
// any duplicate event_id, including duplicates within the batch itself.
func (s *TransferEventStore) InsertBulk(_ context.Context, events []*domain.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[e.EventID]; dup {
			return fmt.Errorf("event %s: %w", e.EventID, storage.ErrDuplicateKey)
		}
		if _, dup := s.data[e.EventID]; dup {
			return fmt.Errorf("event %s: %w", e.EventID, storage.ErrDuplicateKey)
		}
		seen[e.EventID] = struct{}{}
	}

	for _, e := range events {
		cp := *e
		s.data[e.EventID] = &cp
	}
	return nil
}

// GetByWallet retrieves all events for a wallet, ordered by timestamp ASC,
// ties broken by level then event ID.
func (s *TransferEventStore) GetByWallet(_ context.Context, wallet string) ([]*domain.TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferEvent
	for _, e := range s.data {
		if e.Wallet != wallet {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sortEvents(result)
	return result, nil
}

// GetByWalletYear retrieves a wallet's events within one calendar year.
func (s *TransferEventStore) GetByWalletYear(_ context.Context, wallet string, year int) ([]*domain.TransferEvent, error) {
	lo := fmt.Sprintf("%04d-01-01T00:00:00Z", year)
	hi := fmt.Sprintf("%04d-01-01T00:00:00Z", year+1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferEvent
	for _, e := range s.data {
		if e.Wallet != wallet {
			continue
		}
		if e.Timestamp < lo || e.Timestamp >= hi {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sortEvents(result)
	return result, nil
}

// DeleteByWallet removes all events for a wallet and returns the number
// deleted.
func (s *TransferEventStore) DeleteByWallet(_ context.Context, wallet string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, e := range s.data {
		if e.Wallet == wallet {
			delete(s.data, id)
			deleted++
		}
	}
	return deleted, nil
}

// sortEvents orders events by timestamp, then level, then event ID.
// ISO-8601 timestamps sort correctly as strings.
func sortEvents(events []*domain.TransferEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		if events[i].Level != events[j].Level {
			return events[i].Level < events[j].Level
		}
		return events[i].EventID < events[j].EventID
	})
}

var _ storage.TransferEventStore = (*TransferEventStore)(nil)
