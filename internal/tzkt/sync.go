package tzkt

import (
	"context"
	"fmt"
	"log"
	"time"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/observability"
	"tezos-tax-lab/internal/storage"
)

// EarliestSync bounds the first sync of a wallet with no stored history.
// Tezos FA token activity predating this is negligible for tax purposes.
const EarliestSync = "2018-07-01T00:00:00Z"

// Syncer keeps stored wallet histories in sync with the chain.
type Syncer struct {
	client      *Client
	walletStore storage.WalletStore
	eventStore  storage.TransferEventStore
	logger      *log.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(client *Client, walletStore storage.WalletStore, eventStore storage.TransferEventStore, logger *log.Logger) *Syncer {
	return &Syncer{
		client:      client,
		walletStore: walletStore,
		eventStore:  eventStore,
		logger:      logger,
	}
}

// SyncAll syncs every tracked wallet once. Per-wallet failures are logged
// and counted, not fatal.
func (s *Syncer) SyncAll(ctx context.Context) error {
	wallets, err := s.walletStore.GetAll(ctx)
	if err != nil {
		observability.RecordSyncError("load_wallets")
		return fmt.Errorf("load wallets: %w", err)
	}

	for _, w := range wallets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.SyncWallet(ctx, w.Address); err != nil {
			s.logger.Printf("Sync %s: %v", w.Address, err)
			observability.RecordSyncError("sync_wallet")
		}
	}

	observability.DefaultMetrics.LastSuccessfulSync.SetToCurrentTime()
	return nil
}

// SyncWallet fetches activity newer than the wallet's stored history and
// stores the events not seen before. Re-fetching from the newest stored
// timestamp is deliberate: a shared timestamp can split an operation's
// legs across syncs, and the event-ID filter drops the overlap.
func (s *Syncer) SyncWallet(ctx context.Context, addr string) error {
	existing, err := s.eventStore.GetByWallet(ctx, addr)
	if err != nil {
		return fmt.Errorf("load stored events: %w", err)
	}

	from := EarliestSync
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[e.EventID] = struct{}{}
		if e.Timestamp > from {
			from = e.Timestamp
		}
	}
	to := time.Now().UTC().Format(time.RFC3339)

	events, err := s.client.SyncWallet(ctx, addr, from, to)
	if err != nil {
		return err
	}

	var fresh []*domain.TransferEvent
	var highest int64
	for _, e := range events {
		if e.Level > highest {
			highest = e.Level
		}
		if _, dup := seen[e.EventID]; dup {
			continue
		}
		fresh = append(fresh, e)
	}
	if highest > 0 {
		observability.UpdateHighestLevel(highest)
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := s.eventStore.InsertBulk(ctx, fresh); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	observability.RecordEventsStored(len(fresh))
	s.logger.Printf("Stored %d new events for %s", len(fresh), addr)
	return nil
}
