package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

// maxQuoteAge caps how far back an event may reach for a fair-value
// quote. Daily oracle points are the norm; anything older than this is a
// data gap and the event keeps a zero quote.
const maxQuoteAge = 7 * 24 * time.Hour

// enrichCurrencies is the set of currencies events are quoted in.
var enrichCurrencies = []domain.Currency{
	domain.CurrencyUSD,
	domain.CurrencyGBP,
	domain.CurrencyCAD,
	domain.CurrencyAUD,
}

// Enricher attaches per-unit fair-value quotes to events from a quote
// store. Series are loaded once per (asset, currency) pair and searched by
// timestamp, taking the latest point at or before each event.
type Enricher struct {
	store  storage.QuoteStore
	series map[string][]*domain.QuotePoint
}

// NewEnricher creates an Enricher over a quote store.
func NewEnricher(store storage.QuoteStore) *Enricher {
	return &Enricher{
		store:  store,
		series: make(map[string][]*domain.QuotePoint),
	}
}

// Enrich fills in each event's quote map. Events that already carry a
// quote for a currency keep it; missing series leave zeros.
func (en *Enricher) Enrich(ctx context.Context, events []*domain.TransferEvent) error {
	for _, e := range events {
		if e == nil {
			continue
		}
		ts := parseISO(e.Timestamp)
		if ts.IsZero() {
			continue
		}

		for _, cur := range enrichCurrencies {
			if e.Quotes != nil && e.Quotes[cur] != 0 {
				continue
			}
			price, err := en.lookup(ctx, e.Asset, cur, ts)
			if err != nil {
				return err
			}
			if price == 0 {
				continue
			}
			if e.Quotes == nil {
				e.Quotes = make(map[domain.Currency]float64)
			}
			e.Quotes[cur] = price
		}
	}
	return nil
}

// lookup returns the latest quote at or before ts, or zero when the
// series has no usable point.
func (en *Enricher) lookup(ctx context.Context, asset string, cur domain.Currency, ts time.Time) (float64, error) {
	key := asset + "|" + string(cur)
	points, ok := en.series[key]
	if !ok {
		var err error
		points, err = en.store.GetByAsset(ctx, asset, cur)
		if err != nil {
			return 0, fmt.Errorf("load quotes for %s/%s: %w", asset, cur, err)
		}
		en.series[key] = points
	}
	if len(points) == 0 {
		return 0, nil
	}

	tsMs := ts.UnixMilli()
	// First point strictly after ts; the one before it is our candidate.
	i := sort.Search(len(points), func(i int) bool {
		return points[i].TimestampMs > tsMs
	})
	if i == 0 {
		return 0, nil
	}
	p := points[i-1]
	if tsMs-p.TimestampMs > maxQuoteAge.Milliseconds() {
		return 0, nil
	}
	return p.Price, nil
}

func parseISO(ts string) time.Time {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
