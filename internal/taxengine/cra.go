package taxengine

import (
	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/money"
)

// craInclusionRate is the fraction of a capital gain (or loss) that is
// taxable. Applied symmetrically to gains and losses; income is never
// discounted.
const craInclusionRate = 0.5

// CRA is the Canadian engine: single-pass adjusted-cost-base pooling, one
// running pool per asset, 50% inclusion rate.
type CRA struct {
	opts Options
}

// NewCRA creates a CRA engine.
func NewCRA(opts Options) *CRA {
	return &CRA{opts: opts}
}

// Jurisdiction returns domain.JurisdictionCRA.
func (e *CRA) Jurisdiction() domain.Jurisdiction {
	return domain.JurisdictionCRA
}

// Run processes classified events chronologically and produces the CRA
// report in CAD.
func (e *CRA) Run(events []*domain.TransferEvent) (*domain.TaxReport, error) {
	if err := validateEvents(events); err != nil {
		return nil, err
	}

	sorted := sortedByTimestamp(events)
	groups := groupByOp(sorted)
	pools := newPoolRegistry()

	var disposals []*domain.Disposal
	var income []*domain.IncomeEvent
	var taxableTotal float64

	total := len(sorted)
	for i, ev := range sorted {
		group := opGroup(groups, ev)

		switch {
		case isQualifyingAcquisition(ev):
			value, per := acquisitionValue(ev, group, domain.CurrencyCAD)
			pools.pool(ev.Asset).add(ev.Quantity, value)
			if incomeClass(ev.Classification) {
				income = append(income, newIncomeEvent(ev, per))
			}

		case isTaxableDisposal(ev):
			proceeds, fmvPer := disposalProceeds(ev, group, domain.CurrencyCAD)
			cost, breakdown := pools.pool(ev.Asset).consume(ev.Quantity, "ACB")
			gain := proceeds - cost
			taxable := gain * craInclusionRate
			if inYear(ev.Timestamp, e.opts.Year) {
				taxableTotal += taxable
			}

			disposals = append(disposals, &domain.Disposal{
				EventID:     ev.EventID,
				Timestamp:   ev.Timestamp,
				Asset:       ev.Asset,
				Quantity:    ev.Quantity,
				FMVPerUnit:  money.RoundEvent(fmvPer),
				Proceeds:    money.RoundEvent(proceeds),
				Cost:        money.RoundEvent(cost),
				Gain:        money.RoundEvent(gain),
				TaxableGain: money.RoundEvent(taxable),
				FeeXTZ:      ev.FeeXTZ,
				OpHash:      ev.OpHash,
				Breakdown:   breakdown,
				Note:        disposalNote(ev, breakdown),
			})
		}

		reportProgress(e.opts.Progress, i+1, total)
	}

	report := newReport(e.opts, domain.JurisdictionCRA, sorted, disposals, income)
	report.Summary.TaxableGain = money.RoundSummary(taxableTotal)
	return report, nil
}

var _ Engine = (*CRA)(nil)
