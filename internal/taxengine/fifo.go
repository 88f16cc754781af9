package taxengine

import (
	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/money"
)

// runFIFO executes the FIFO lot-matching discipline shared by the IRS and
// ATO engines: one lot queue for the native asset and one per distinct
// token identifier, consumed oldest-first.
func runFIFO(opts Options, events []*domain.TransferEvent, cur domain.Currency) ([]*domain.TransferEvent, []*domain.Disposal, []*domain.IncomeEvent) {
	sorted := sortedByTimestamp(events)
	groups := groupByOp(sorted)
	lots := newLotRegistry()

	var disposals []*domain.Disposal
	var income []*domain.IncomeEvent

	total := len(sorted)
	for i, e := range sorted {
		group := opGroup(groups, e)

		switch {
		case isQualifyingAcquisition(e):
			_, per := acquisitionValue(e, group, cur)
			lots.queue(e.Asset).push(&domain.Lot{
				AcquiredAt: e.Timestamp,
				Quantity:   e.Quantity,
				BasisPer:   per,
				SourceID:   e.EventID,
			})
			if incomeClass(e.Classification) {
				income = append(income, newIncomeEvent(e, per))
			}

		case isTaxableDisposal(e):
			proceeds, fmvPer := disposalProceeds(e, group, cur)
			cost, breakdown := lots.queue(e.Asset).consume(e.Quantity)
			disposals = append(disposals, &domain.Disposal{
				EventID:    e.EventID,
				Timestamp:  e.Timestamp,
				Asset:      e.Asset,
				Quantity:   e.Quantity,
				FMVPerUnit: money.RoundEvent(fmvPer),
				Proceeds:   money.RoundEvent(proceeds),
				Cost:       money.RoundEvent(cost),
				Gain:       money.RoundEvent(proceeds - cost),
				FeeXTZ:     e.FeeXTZ,
				OpHash:     e.OpHash,
				Breakdown:  breakdown,
				Note:       disposalNote(e, breakdown),
			})
		}

		reportProgress(opts.Progress, i+1, total)
	}

	return sorted, disposals, income
}

// disposalNote flags the cases a reviewer should look at.
func disposalNote(e *domain.TransferEvent, breakdown []domain.LotConsumption) string {
	for _, b := range breakdown {
		if b.Rule == "zero-basis" {
			return "insufficient acquisition history; remainder consumed at zero basis"
		}
	}
	if !e.IsNative() && e.Quote(domain.CurrencyUSD) == 0 {
		return "token proceeds sourced from native leg of the same operation"
	}
	return ""
}
