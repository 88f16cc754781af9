package clickhouse

import (
	"context"
	"fmt"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

// QuoteStore implements storage.QuoteStore using ClickHouse. The quote
// timeseries is append-heavy and read in ranges, which fits MergeTree;
// uniqueness of (asset, currency, timestamp_ms) is enforced with explicit
// checks because MergeTree does not reject duplicates at insert time.
type QuoteStore struct {
	conn *Conn
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(conn *Conn) *QuoteStore {
	return &QuoteStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate
// (asset, currency, timestamp_ms).
func (s *QuoteStore) InsertBulk(ctx context.Context, points []*domain.QuotePoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		asset       string
		currency    domain.Currency
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		if p == nil || p.Asset == "" || p.Currency == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.Asset, p.Currency, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range points {
		exists, err := s.exists(ctx, p.Asset, p.Currency, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO quote_timeseries (
			asset, currency, timestamp_ms, price, source
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.Asset, string(p.Currency), uint64(p.TimestampMs),
			p.Price, p.Source,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAsset retrieves all points for an asset/currency pair, ordered by
// timestamp ASC.
func (s *QuoteStore) GetByAsset(ctx context.Context, asset string, currency domain.Currency) ([]*domain.QuotePoint, error) {
	query := `
		SELECT asset, currency, timestamp_ms, price, source
		FROM quote_timeseries
		WHERE asset = ? AND currency = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, asset, string(currency))
	if err != nil {
		return nil, fmt.Errorf("query by asset: %w", err)
	}
	defer rows.Close()

	return scanQuotes(rows)
}

// GetByTimeRange retrieves points for an asset/currency pair within
// [start, end] (inclusive).
func (s *QuoteStore) GetByTimeRange(ctx context.Context, asset string, currency domain.Currency, start, end int64) ([]*domain.QuotePoint, error) {
	query := `
		SELECT asset, currency, timestamp_ms, price, source
		FROM quote_timeseries
		WHERE asset = ? AND currency = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, asset, string(currency), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanQuotes(rows)
}

// exists checks if a point with the given key exists.
func (s *QuoteStore) exists(ctx context.Context, asset string, currency domain.Currency, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM quote_timeseries
		WHERE asset = ? AND currency = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, asset, string(currency), uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanQuotes scans multiple rows.
func scanQuotes(rows chRows) ([]*domain.QuotePoint, error) {
	var points []*domain.QuotePoint

	for rows.Next() {
		var p domain.QuotePoint
		var currency string
		var timestampMs uint64

		err := rows.Scan(&p.Asset, &currency, &timestampMs, &p.Price, &p.Source)
		if err != nil {
			return nil, fmt.Errorf("scan quote row: %w", err)
		}

		p.Currency = domain.Currency(currency)
		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote rows: %w", err)
	}

	return points, nil
}
