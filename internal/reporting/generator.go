package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tezos-tax-lab/internal/classify"
	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
	"tezos-tax-lab/internal/taxengine"
)

// Generator produces tax reports from stored data: it loads a wallet's
// event history, classifies it against the full owned-wallet set, runs the
// requested jurisdiction engine and persists the result.
type Generator struct {
	walletStore storage.WalletStore
	eventStore  storage.TransferEventStore
	reportStore storage.ReportStore
	classifier  *classify.Classifier
	quoteStore  storage.QuoteStore // optional
	now         func() time.Time   // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	walletStore storage.WalletStore,
	eventStore storage.TransferEventStore,
	reportStore storage.ReportStore,
	classifier *classify.Classifier,
) *Generator {
	return &Generator{
		walletStore: walletStore,
		eventStore:  eventStore,
		reportStore: reportStore,
		classifier:  classifier,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithQuotes attaches a quote store; loaded events are enriched with
// fair-value quotes before classification.
func (g *Generator) WithQuotes(store storage.QuoteStore) *Generator {
	g.quoteStore = store
	return g
}

// Generate runs one engine over one wallet and tax year and persists the
// resulting report, replacing any previous report for the same triple.
// The engine consumes the wallet's full history so basis established in
// earlier years carries into the period.
func (g *Generator) Generate(ctx context.Context, wallet string, j domain.Jurisdiction, year int) (*domain.TaxReport, error) {
	if _, err := g.walletStore.GetByAddress(ctx, wallet); err != nil {
		return nil, fmt.Errorf("load wallet %s: %w", wallet, err)
	}

	all, err := g.walletStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load wallet set: %w", err)
	}
	owned := make([]string, 0, len(all))
	delegates := make(map[string]string, len(all))
	for _, w := range all {
		owned = append(owned, w.Address)
		if w.Delegate != "" {
			delegates[w.Address] = w.Delegate
		}
	}

	events, err := g.eventStore.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", wallet, err)
	}

	if g.quoteStore != nil {
		if err := NewEnricher(g.quoteStore).Enrich(ctx, events); err != nil {
			return nil, err
		}
	}

	g.classifier.Classify(events, owned, delegates)

	engine, err := taxengine.NewEngine(j, taxengine.Options{Wallet: wallet, Year: year})
	if err != nil {
		return nil, err
	}

	report, err := engine.Run(events)
	if err != nil {
		return nil, fmt.Errorf("run %s engine: %w", j, err)
	}
	report.GeneratedAt = g.now().Format(time.RFC3339)

	if err := g.persist(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// persist stores the report, replacing an existing one with the same ID.
// Report IDs are deterministic per (wallet, jurisdiction, year), so a
// regeneration overwrites the stale run.
func (g *Generator) persist(ctx context.Context, r *domain.TaxReport) error {
	err := g.reportStore.Insert(ctx, r)
	if errors.Is(err, storage.ErrDuplicateKey) {
		if err := g.reportStore.Delete(ctx, r.ReportID); err != nil {
			return fmt.Errorf("replace report %s: %w", r.ReportID, err)
		}
		err = g.reportStore.Insert(ctx, r)
	}
	if err != nil {
		return fmt.Errorf("persist report %s: %w", r.ReportID, err)
	}
	return nil
}
