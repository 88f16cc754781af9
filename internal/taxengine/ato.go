package taxengine

import (
	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/money"
)

// atoDiscountRate is the CGT discount applied to the long-term portion of
// net gains (assets held more than 12 months).
const atoDiscountRate = 0.5

// ATO is the Australian engine: the same FIFO lot-matching discipline as
// the IRS engine, with realized gains partitioned into short-term (held
// 12 months or less) and long-term (held more than 12 months) and the CGT
// discount applied to the long-term portion only. Income is recognized at
// full value with no discount.
type ATO struct {
	opts Options
}

// NewATO creates an ATO engine.
func NewATO(opts Options) *ATO {
	return &ATO{opts: opts}
}

// Jurisdiction returns domain.JurisdictionATO.
func (e *ATO) Jurisdiction() domain.Jurisdiction {
	return domain.JurisdictionATO
}

// Run processes classified events in timestamp order and produces the ATO
// report in AUD.
func (e *ATO) Run(events []*domain.TransferEvent) (*domain.TaxReport, error) {
	if err := validateEvents(events); err != nil {
		return nil, err
	}

	ledger, disposals, income := runFIFO(e.opts, events, domain.CurrencyAUD)

	// Summary partitions only cover the report period; per-disposal fields
	// are set for every disposal regardless.
	var shortTerm, longTerm float64
	for _, d := range disposals {
		short, long := splitHoldingPeriods(d)
		if inYear(d.Timestamp, e.opts.Year) {
			shortTerm += short
			longTerm += long
		}

		d.LongTerm = long != 0
		taxable := d.Gain
		if long > 0 {
			taxable -= atoDiscountRate * long
		}
		d.TaxableGain = money.RoundEvent(taxable)
	}

	report := newReport(e.opts, domain.JurisdictionATO, ledger, disposals, income)

	// Long-term losses offset long-term gains before the discount; the
	// discount never applies to a net loss.
	discount := 0.0
	if longTerm > 0 {
		discount = atoDiscountRate * longTerm
	}
	report.Summary.ShortTermGain = money.RoundSummary(shortTerm)
	report.Summary.LongTermGain = money.RoundSummary(longTerm)
	report.Summary.CGTDiscount = money.RoundSummary(discount)
	report.Summary.TaxableGain = money.RoundSummary(shortTerm + longTerm - discount)

	return report, nil
}

// splitHoldingPeriods partitions a disposal's gain by consumed-lot holding
// period. Proceeds are apportioned across the breakdown by quantity; a
// zero-basis remainder has no acquisition date and counts as short-term.
func splitHoldingPeriods(d *domain.Disposal) (short, long float64) {
	disposedAt := parseTimestamp(d.Timestamp)

	for _, b := range d.Breakdown {
		proceedsShare := b.Quantity * d.FMVPerUnit
		gainShare := proceedsShare - b.Quantity*b.CostPer

		if b.AcquiredAt == "" {
			short += gainShare
			continue
		}
		acquiredAt := parseTimestamp(b.AcquiredAt)
		if !acquiredAt.IsZero() && disposedAt.After(acquiredAt.AddDate(1, 0, 0)) {
			long += gainShare
		} else {
			short += gainShare
		}
	}
	return short, long
}

var _ Engine = (*ATO)(nil)
