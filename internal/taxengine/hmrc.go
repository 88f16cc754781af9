package taxengine

import (
	"time"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/money"
)

// thirtyDayWindow is the HMRC bed-and-breakfasting window: acquisitions
// dated strictly after a disposal and within this many calendar days of it
// are matched before the Section 104 pool.
const thirtyDayWindow = 30

// hmrcAcquisition tracks one qualifying acquisition through pass 2.
// Remaining quantity is mutable state owned by the pass-2 loop: it is
// decremented by same-day and 30-day consumption, and only the remaining
// quantity ever enters the Section 104 pool.
type hmrcAcquisition struct {
	ts        string
	at        time.Time
	day       string
	remaining float64
	costPer   float64
}

// HMRC is the UK engine: same-day matching, then the 30-day rule, then
// Section 104 average-cost pooling, over native-asset events.
type HMRC struct {
	opts Options
}

// NewHMRC creates an HMRC engine.
func NewHMRC(opts Options) *HMRC {
	return &HMRC{opts: opts}
}

// Jurisdiction returns domain.JurisdictionHMRC.
func (e *HMRC) Jurisdiction() domain.Jurisdiction {
	return domain.JurisdictionHMRC
}

// Run processes classified events in timestamp order and produces the
// HMRC report in GBP.
func (e *HMRC) Run(events []*domain.TransferEvent) (*domain.TaxReport, error) {
	if err := validateEvents(events); err != nil {
		return nil, err
	}

	sorted := sortedByTimestamp(events)

	// Pass 1: record qualifying native acquisitions per calendar day and
	// in a master chronological list; emit income events.
	var acqs []*hmrcAcquisition
	byDay := make(map[string][]*hmrcAcquisition)
	var income []*domain.IncomeEvent

	for _, ev := range sorted {
		if !ev.IsNative() || !isQualifyingAcquisition(ev) {
			continue
		}
		per := ev.Quote(domain.CurrencyGBP)
		if ev.Mint {
			per = 0
		}
		acq := &hmrcAcquisition{
			ts:        ev.Timestamp,
			at:        parseTimestamp(ev.Timestamp),
			day:       eventDay(ev.Timestamp),
			remaining: ev.Quantity,
			costPer:   per,
		}
		acqs = append(acqs, acq)
		byDay[acq.day] = append(byDay[acq.day], acq)

		if incomeClass(ev.Classification) {
			income = append(income, newIncomeEvent(ev, per))
		}
	}

	// Pass 2: process disposals chronologically, interleaving Section 104
	// accumulation. An acquisition's remaining quantity enters the pool
	// only once every disposal up to and including its date has been
	// processed; quantity claimed by a later 30-day match therefore never
	// reaches the pool.
	pool := &acbPool{}
	flushIdx := 0
	var disposals []*domain.Disposal

	total := len(sorted)
	for i, ev := range sorted {
		reportProgress(e.opts.Progress, i+1, total)

		if !ev.IsNative() || !isTaxableDisposal(ev) {
			continue
		}

		day := eventDay(ev.Timestamp)
		at := parseTimestamp(ev.Timestamp)

		// Accumulate acquisitions from days strictly before this disposal.
		for flushIdx < len(acqs) && acqs[flushIdx].day < day {
			a := acqs[flushIdx]
			if a.remaining > Epsilon {
				pool.add(a.remaining, a.remaining*a.costPer)
			}
			flushIdx++
		}

		fmvPer := ev.Quote(domain.CurrencyGBP)
		proceeds := ev.Quantity * fmvPer
		qtyLeft := ev.Quantity
		cost := 0.0
		var breakdown []domain.LotConsumption

		// (a) same-day acquisitions, in day order.
		for _, a := range byDay[day] {
			if qtyLeft <= Epsilon {
				break
			}
			take := consumeAcquisition(a, qtyLeft)
			if take <= 0 {
				continue
			}
			cost += take * a.costPer
			qtyLeft -= take
			breakdown = append(breakdown, domain.LotConsumption{
				AcquiredAt: a.ts, Quantity: take, CostPer: a.costPer, Rule: "same-day",
			})
		}

		// (b) acquisitions strictly after the disposal, within 30 calendar
		// days, earliest first.
		if qtyLeft > Epsilon {
			cutoff := dayStart(at).AddDate(0, 0, thirtyDayWindow)
			for _, a := range acqs {
				if qtyLeft <= Epsilon {
					break
				}
				if !a.at.After(at) || dayStart(a.at).After(cutoff) {
					continue
				}
				take := consumeAcquisition(a, qtyLeft)
				if take <= 0 {
					continue
				}
				cost += take * a.costPer
				qtyLeft -= take
				breakdown = append(breakdown, domain.LotConsumption{
					AcquiredAt: a.ts, Quantity: take, CostPer: a.costPer, Rule: "30-day",
				})
			}
		}

		// (c) Section 104 pool for the remainder.
		if qtyLeft > Epsilon {
			poolCost, poolBreakdown := pool.consume(qtyLeft, "S104")
			cost += poolCost
			breakdown = append(breakdown, poolBreakdown...)
		}

		disposals = append(disposals, &domain.Disposal{
			EventID:    ev.EventID,
			Timestamp:  ev.Timestamp,
			Asset:      ev.Asset,
			Quantity:   ev.Quantity,
			FMVPerUnit: money.RoundEvent(fmvPer),
			Proceeds:   money.RoundEvent(proceeds),
			Cost:       money.RoundEvent(cost),
			Gain:       money.RoundEvent(proceeds - cost),
			FeeXTZ:     ev.FeeXTZ,
			OpHash:     ev.OpHash,
			Breakdown:  breakdown,
			Note:       hmrcNote(breakdown),
		})
	}

	return newReport(e.opts, domain.JurisdictionHMRC, sorted, disposals, income), nil
}

// consumeAcquisition claims up to qty from an acquisition's remaining
// quantity and returns the amount taken.
func consumeAcquisition(a *hmrcAcquisition, qty float64) float64 {
	if a.remaining <= Epsilon {
		return 0
	}
	take := qty
	if a.remaining < take {
		take = a.remaining
	}
	a.remaining -= take
	return take
}

// hmrcNote flags pool exhaustion for review.
func hmrcNote(breakdown []domain.LotConsumption) string {
	for _, b := range breakdown {
		if b.Rule == "zero-basis" {
			return "pool exhausted; remainder consumed at zero cost"
		}
	}
	return ""
}

// eventDay extracts the calendar day (YYYY-MM-DD) from an ISO-8601
// timestamp.
func eventDay(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}

// dayStart truncates a time to midnight UTC.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var _ Engine = (*HMRC)(nil)
