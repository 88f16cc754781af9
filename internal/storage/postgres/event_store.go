package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

// TransferEventStore implements storage.TransferEventStore using PostgreSQL.
// Fiat quotes are stored alongside each event as JSONB; classification
// fields are not persisted because they are recomputed per report run.
type TransferEventStore struct {
	pool *Pool
}

// NewTransferEventStore creates a new TransferEventStore.
func NewTransferEventStore(pool *Pool) *TransferEventStore {
	return &TransferEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferEventStore = (*TransferEventStore)(nil)

const insertEventQuery = `
	INSERT INTO transfer_events (
		event_id, wallet, timestamp, level, op_hash, kind, direction,
		counterparty, asset, quantity, fee_xtz, mint, likely_nft, quotes
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`

// InsertBulk adds multiple events atomically. Fails entire batch on any
// duplicate event_id.
func (s *TransferEventStore) InsertBulk(ctx context.Context, events []*domain.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}

		quotes, err := marshalQuotes(e.Quotes)
		if err != nil {
			return fmt.Errorf("marshal quotes for %s: %w", e.EventID, err)
		}

		_, err = tx.Exec(ctx, insertEventQuery,
			e.EventID,
			e.Wallet,
			e.Timestamp,
			e.Level,
			e.OpHash,
			e.Kind,
			e.Direction,
			e.Counterparty,
			e.Asset,
			e.Quantity,
			e.FeeXTZ,
			e.Mint,
			e.LikelyNFT,
			quotes,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("event %s: %w", e.EventID, storage.ErrDuplicateKey)
			}
			return fmt.Errorf("insert event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByWallet retrieves all events for a wallet, ordered by timestamp ASC,
// ties broken by level then event_id.
func (s *TransferEventStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.TransferEvent, error) {
	query := `
		SELECT event_id, wallet, timestamp, level, op_hash, kind, direction,
		       counterparty, asset, quantity, fee_xtz, mint, likely_nft, quotes
		FROM transfer_events
		WHERE wallet = $1
		ORDER BY timestamp ASC, level ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get events by wallet: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByWalletYear retrieves a wallet's events within one calendar year.
// ISO-8601 timestamps compare correctly as text.
func (s *TransferEventStore) GetByWalletYear(ctx context.Context, wallet string, year int) ([]*domain.TransferEvent, error) {
	query := `
		SELECT event_id, wallet, timestamp, level, op_hash, kind, direction,
		       counterparty, asset, quantity, fee_xtz, mint, likely_nft, quotes
		FROM transfer_events
		WHERE wallet = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp ASC, level ASC, event_id ASC
	`

	lo := fmt.Sprintf("%04d-01-01T00:00:00Z", year)
	hi := fmt.Sprintf("%04d-01-01T00:00:00Z", year+1)

	rows, err := s.pool.Query(ctx, query, wallet, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("get events by wallet year: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// DeleteByWallet removes all events for a wallet and returns the number
// deleted.
func (s *TransferEventStore) DeleteByWallet(ctx context.Context, wallet string) (int64, error) {
	query := `
		DELETE FROM transfer_events WHERE wallet = $1
	`

	tag, err := s.pool.Exec(ctx, query, wallet)
	if err != nil {
		return 0, fmt.Errorf("delete events by wallet: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanEvents scans multiple rows into a slice of TransferEvent.
func scanEvents(rows pgx.Rows) ([]*domain.TransferEvent, error) {
	var events []*domain.TransferEvent

	for rows.Next() {
		var e domain.TransferEvent
		var quotes []byte

		err := rows.Scan(
			&e.EventID,
			&e.Wallet,
			&e.Timestamp,
			&e.Level,
			&e.OpHash,
			&e.Kind,
			&e.Direction,
			&e.Counterparty,
			&e.Asset,
			&e.Quantity,
			&e.FeeXTZ,
			&e.Mint,
			&e.LikelyNFT,
			&quotes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		if len(quotes) > 0 {
			if err := json.Unmarshal(quotes, &e.Quotes); err != nil {
				return nil, fmt.Errorf("unmarshal quotes for %s: %w", e.EventID, err)
			}
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}

// marshalQuotes serializes the per-currency quote map for the JSONB
// column. A nil map stores as an empty object.
func marshalQuotes(quotes map[domain.Currency]float64) ([]byte, error) {
	if quotes == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(quotes)
}
