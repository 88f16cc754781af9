// Package storage defines the persistence boundary of the tax core.
// The core itself never blocks on I/O; callers materialize events through
// these interfaces before handing them to the classifier and engines.
package storage

import (
	"context"

	"tezos-tax-lab/internal/domain"
)

// WalletStore provides access to tracked wallets.
type WalletStore interface {
	// Insert adds a new wallet. Returns ErrDuplicateKey if the address exists.
	Insert(ctx context.Context, w *domain.Wallet) error

	// GetByAddress retrieves a wallet. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Wallet, error)

	// GetAll retrieves all wallets ordered by address.
	GetAll(ctx context.Context) ([]*domain.Wallet, error)

	// SetDelegate updates a wallet's current delegate address.
	SetDelegate(ctx context.Context, address, delegate string) error

	// Delete removes a wallet. Returns ErrNotFound if not exists.
	// The wallet's events must be removed separately via
	// TransferEventStore.DeleteByWallet.
	Delete(ctx context.Context, address string) error
}

// TransferEventStore provides access to synced transfer events. Events are
// append-only; classification results are not persisted here (they are
// recomputed deterministically per report run).
type TransferEventStore interface {
	// InsertBulk adds multiple events atomically. Fails entire batch on
	// any duplicate event_id.
	InsertBulk(ctx context.Context, events []*domain.TransferEvent) error

	// GetByWallet retrieves all events for a wallet, ordered by timestamp
	// ASC, ties by level then event_id.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.TransferEvent, error)

	// GetByWalletYear retrieves a wallet's events within one calendar year.
	GetByWalletYear(ctx context.Context, wallet string, year int) ([]*domain.TransferEvent, error)

	// DeleteByWallet removes all events for a wallet and returns the number
	// deleted. Events are never deleted individually.
	DeleteByWallet(ctx context.Context, wallet string) (int64, error)
}

// ReportStore provides access to generated tax reports.
type ReportStore interface {
	// Insert adds a new report. Returns ErrDuplicateKey if report_id exists.
	Insert(ctx context.Context, r *domain.TaxReport) error

	// GetByID retrieves a report. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, reportID string) (*domain.TaxReport, error)

	// GetByWallet retrieves all reports for a wallet, newest first.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.TaxReport, error)

	// Delete removes a report. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, reportID string) error
}

// QuoteStore provides access to the historical fair-value quote
// timeseries backing event enrichment.
type QuoteStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate
	// (asset, currency, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.QuotePoint) error

	// GetByAsset retrieves all points for an asset/currency pair, ordered
	// by timestamp ASC.
	GetByAsset(ctx context.Context, asset string, currency domain.Currency) ([]*domain.QuotePoint, error)

	// GetByTimeRange retrieves points for an asset/currency pair within
	// [start, end] (inclusive, Unix ms).
	GetByTimeRange(ctx context.Context, asset string, currency domain.Currency, start, end int64) ([]*domain.QuotePoint, error)
}
