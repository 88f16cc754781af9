package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

type quoteKey struct {
	asset       string
	currency    domain.Currency
	timestampMs int64
}

// QuoteStore is an in-memory implementation of storage.QuoteStore.
type QuoteStore struct {
	mu   sync.RWMutex
	data map[quoteKey]*domain.QuotePoint
}

// NewQuoteStore creates a new in-memory quote store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{data: make(map[quoteKey]*domain.QuotePoint)}
}

// InsertBulk adds multiple points. Fails the entire batch on duplicate
// (asset, currency, timestamp_ms), including duplicates within the batch.
func (s *QuoteStore) InsertBulk(_ context.Context, points []*domain.QuotePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[quoteKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.Asset == "" || p.Currency == "" {
			return storage.ErrInvalidInput
		}
		k := quoteKey{p.Asset, p.Currency, p.TimestampMs}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("quote %s/%s@%d: %w", p.Asset, p.Currency, p.TimestampMs, storage.ErrDuplicateKey)
		}
		if _, dup := s.data[k]; dup {
			return fmt.Errorf("quote %s/%s@%d: %w", p.Asset, p.Currency, p.TimestampMs, storage.ErrDuplicateKey)
		}
		seen[k] = struct{}{}
	}

	for _, p := range points {
		cp := *p
		s.data[quoteKey{p.Asset, p.Currency, p.TimestampMs}] = &cp
	}
	return nil
}

// GetByAsset retrieves all points for an asset/currency pair, ordered by
// timestamp ASC.
func (s *QuoteStore) GetByAsset(_ context.Context, asset string, currency domain.Currency) ([]*domain.QuotePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.QuotePoint
	for k, p := range s.data {
		if k.asset != asset || k.currency != currency {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}

	sortQuotes(result)
	return result, nil
}

// GetByTimeRange retrieves points for an asset/currency pair within
// [start, end] inclusive.
func (s *QuoteStore) GetByTimeRange(_ context.Context, asset string, currency domain.Currency, start, end int64) ([]*domain.QuotePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.QuotePoint
	for k, p := range s.data {
		if k.asset != asset || k.currency != currency {
			continue
		}
		if k.timestampMs < start || k.timestampMs > end {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}

	sortQuotes(result)
	return result, nil
}

func sortQuotes(points []*domain.QuotePoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})
}

var _ storage.QuoteStore = (*QuoteStore)(nil)
