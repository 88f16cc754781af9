package taxengine

import "tezos-tax-lab/internal/domain"

// IRS is the US engine: FIFO lot matching per asset, ordinary income for
// staking payouts, received income and creator-sale receipts.
type IRS struct {
	opts Options
}

// NewIRS creates an IRS engine.
func NewIRS(opts Options) *IRS {
	return &IRS{opts: opts}
}

// Jurisdiction returns domain.JurisdictionIRS.
func (e *IRS) Jurisdiction() domain.Jurisdiction {
	return domain.JurisdictionIRS
}

// Run processes classified events in timestamp order and produces the IRS
// report in USD.
func (e *IRS) Run(events []*domain.TransferEvent) (*domain.TaxReport, error) {
	if err := validateEvents(events); err != nil {
		return nil, err
	}

	ledger, disposals, income := runFIFO(e.opts, events, domain.CurrencyUSD)
	return newReport(e.opts, domain.JurisdictionIRS, ledger, disposals, income), nil
}

var _ Engine = (*IRS)(nil)
