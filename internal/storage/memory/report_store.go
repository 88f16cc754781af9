package memory

import (
	"context"
	"sort"
	"sync"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

// ReportStore is an in-memory implementation of storage.ReportStore.
type ReportStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TaxReport // keyed by report ID
}

// NewReportStore creates a new in-memory report store.
func NewReportStore() *ReportStore {
	return &ReportStore{data: make(map[string]*domain.TaxReport)}
}

// Insert adds a new report. Returns ErrDuplicateKey if report_id exists.
func (s *ReportStore) Insert(_ context.Context, r *domain.TaxReport) error {
	if r == nil || r.ReportID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ReportID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *r
	s.data[r.ReportID] = &cp
	return nil
}

// GetByID retrieves a report. Returns ErrNotFound if not exists.
func (s *ReportStore) GetByID(_ context.Context, reportID string) (*domain.TaxReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[reportID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// GetByWallet retrieves all reports for a wallet, newest first.
func (s *ReportStore) GetByWallet(_ context.Context, wallet string) ([]*domain.TaxReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TaxReport
	for _, r := range s.data {
		if r.Wallet != wallet {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].GeneratedAt != result[j].GeneratedAt {
			return result[i].GeneratedAt > result[j].GeneratedAt
		}
		return result[i].ReportID < result[j].ReportID
	})

	return result, nil
}

// Delete removes a report. Returns ErrNotFound if not exists.
func (s *ReportStore) Delete(_ context.Context, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[reportID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, reportID)
	return nil
}

var _ storage.ReportStore = (*ReportStore)(nil)
