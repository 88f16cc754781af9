// Package taxengine computes jurisdiction-specific capital-gains and
// income outcomes from classified transfer events. Each engine is a pure
// function of its input events: lot queues and pools are allocated fresh
// per run, so concurrent runs over different inputs never share state.
package taxengine

import (
	"fmt"
	"sort"
	"time"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/idhash"
	"tezos-tax-lab/internal/money"
)

// Progress is invoked after each processed event. It must be
// side-effect-free from the engine's perspective: no back-pressure, no
// cancellation contract.
type Progress func(processed, total int)

// Options configures an engine run.
type Options struct {
	Wallet   string
	Year     int
	Progress Progress // optional
}

// Engine consumes classified events for a single tax period and produces
// a ledger, disposals, income events and aggregate totals.
type Engine interface {
	Jurisdiction() domain.Jurisdiction
	Run(events []*domain.TransferEvent) (*domain.TaxReport, error)
}

// NewEngine returns the engine for a jurisdiction.
func NewEngine(j domain.Jurisdiction, opts Options) (Engine, error) {
	switch j {
	case domain.JurisdictionIRS:
		return NewIRS(opts), nil
	case domain.JurisdictionHMRC:
		return NewHMRC(opts), nil
	case domain.JurisdictionCRA:
		return NewCRA(opts), nil
	case domain.JurisdictionATO:
		return NewATO(opts), nil
	default:
		return nil, fmt.Errorf("unknown jurisdiction: %q", j)
	}
}

// validateEvents rejects malformed input shape: nil entries or events
// missing required identity fields. Data-quality gaps (missing quotes,
// zero quantities) are not errors.
func validateEvents(events []*domain.TransferEvent) error {
	for i, e := range events {
		if e == nil {
			return fmt.Errorf("event %d: nil entry", i)
		}
		if e.EventID == "" {
			return fmt.Errorf("event %d: missing event id", i)
		}
		if e.Timestamp == "" {
			return fmt.Errorf("event %s: missing timestamp", e.EventID)
		}
		if e.Asset == "" {
			return fmt.Errorf("event %s: missing asset", e.EventID)
		}
		if e.Direction != domain.DirectionIn && e.Direction != domain.DirectionOut {
			return fmt.Errorf("event %s: invalid direction %q", e.EventID, e.Direction)
		}
	}
	return nil
}

// sortedByTimestamp returns a copy sorted ascending by timestamp, ties
// broken by original arrival order. ISO-8601 UTC timestamps sort
// lexicographically.
func sortedByTimestamp(events []*domain.TransferEvent) []*domain.TransferEvent {
	out := make([]*domain.TransferEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// groupByOp indexes events by (wallet, opHash) so token legs can source
// fair value from the native leg of the same operation.
func groupByOp(events []*domain.TransferEvent) map[string][]*domain.TransferEvent {
	groups := make(map[string][]*domain.TransferEvent)
	for _, e := range events {
		if e.OpHash == "" {
			continue
		}
		groups[e.Wallet+"|"+e.OpHash] = append(groups[e.Wallet+"|"+e.OpHash], e)
	}
	return groups
}

func opGroup(groups map[string][]*domain.TransferEvent, e *domain.TransferEvent) []*domain.TransferEvent {
	return groups[e.Wallet+"|"+e.OpHash]
}

// nativeLegValue returns the fiat value of the first positive native leg
// with the given direction in the event's operation group, or zero.
func nativeLegValue(group []*domain.TransferEvent, dir domain.Direction, cur domain.Currency) float64 {
	for _, g := range group {
		if g.IsNative() && g.Direction == dir && g.Quantity > 0 {
			return g.Quantity * g.Quote(cur)
		}
	}
	return 0
}

// disposalProceeds computes proceeds and the per-unit fair value used for
// an outgoing event. Native disposals use the event's own quote; token
// disposals source proceeds from the native asset received in the same
// operation, or zero if no such leg exists.
func disposalProceeds(e *domain.TransferEvent, group []*domain.TransferEvent, cur domain.Currency) (proceeds, fmvPer float64) {
	if e.IsNative() {
		fmvPer = e.Quote(cur)
		return e.Quantity * fmvPer, fmvPer
	}
	proceeds = nativeLegValue(group, domain.DirectionIn, cur)
	if e.Quantity > 0 {
		fmvPer = proceeds / e.Quantity
	}
	return proceeds, fmvPer
}

// acquisitionValue computes the cost recognized for an incoming event.
// Fair value at receipt; a mint carries no tracked cost. Token receipts
// without a quote fall back to the native asset paid in the same
// operation, then to zero.
func acquisitionValue(e *domain.TransferEvent, group []*domain.TransferEvent, cur domain.Currency) (value, per float64) {
	if e.Mint {
		return 0, 0
	}
	per = e.Quote(cur)
	if per > 0 {
		return e.Quantity * per, per
	}
	if !e.IsNative() {
		value = nativeLegValue(group, domain.DirectionOut, cur)
		if e.Quantity > 0 {
			per = value / e.Quantity
		}
		return value, per
	}
	return 0, 0
}

// isTaxableDisposal reports whether an outgoing event realizes a capital
// disposal. Self-transfers and exchange deposits are not taxable here;
// creator-sale legs recognize income on the paired receipt instead; and
// unknown events are excluded from every engine's taxable totals.
func isTaxableDisposal(e *domain.TransferEvent) bool {
	if e.Direction != domain.DirectionOut || e.Quantity <= 0 {
		return false
	}
	switch e.Classification {
	case domain.ClassSelfTransfer, domain.ClassCEXDeposit, domain.ClassCreatorSale, domain.ClassUnknown:
		return false
	}
	return true
}

// isQualifyingAcquisition reports whether an incoming event creates basis.
func isQualifyingAcquisition(e *domain.TransferEvent) bool {
	if e.Direction != domain.DirectionIn || e.Quantity <= 0 {
		return false
	}
	switch e.Classification {
	case domain.ClassSelfTransfer, domain.ClassUnknown:
		return false
	}
	return true
}

// incomeClass reports whether a receipt is also recognized as ordinary
// income at full receipt-time fair value.
func incomeClass(c domain.Classification) bool {
	switch c {
	case domain.ClassBakingReward, domain.ClassReceivedIncome, domain.ClassCreatorSale:
		return true
	}
	return false
}

// newIncomeEvent builds an income record for a qualifying receipt.
func newIncomeEvent(e *domain.TransferEvent, per float64) *domain.IncomeEvent {
	return &domain.IncomeEvent{
		EventID:        e.EventID,
		Timestamp:      e.Timestamp,
		Asset:          e.Asset,
		Quantity:       e.Quantity,
		FMVPerUnit:     money.RoundEvent(per),
		Amount:         money.RoundEvent(e.Quantity * per),
		Classification: e.Classification,
		OpHash:         e.OpHash,
	}
}

// summarize assembles the shared summary totals. Totals are computed from
// the unrounded running sums and rounded once, half-up, at 2 places.
func summarize(j domain.Jurisdiction, disposals []*domain.Disposal, income []*domain.IncomeEvent) domain.TaxSummary {
	s := domain.TaxSummary{
		Jurisdiction:   j,
		Currency:       j.ReportCurrency(),
		TotalDisposals: len(disposals),
	}

	var proceeds, cost, gain float64
	for _, d := range disposals {
		proceeds += d.Proceeds
		cost += d.Cost
		gain += d.Gain
	}
	s.TotalProceeds = money.RoundSummary(proceeds)
	s.TotalCostBasis = money.RoundSummary(cost)
	s.TotalGain = money.RoundSummary(gain)
	s.TaxableGain = s.TotalGain

	var total, staking, creator, received float64
	for _, ie := range income {
		total += ie.Amount
		switch ie.Classification {
		case domain.ClassBakingReward:
			staking += ie.Amount
		case domain.ClassCreatorSale:
			creator += ie.Amount
		default:
			received += ie.Amount
		}
	}
	s.TotalIncome = money.RoundSummary(total)
	s.StakingIncome = money.RoundSummary(staking)
	s.CreatorIncome = money.RoundSummary(creator)
	s.ReceivedIncome = money.RoundSummary(received)

	return s
}

// inYear reports whether an ISO-8601 timestamp falls in a calendar year.
// Year zero means no period restriction.
func inYear(ts string, year int) bool {
	if year == 0 {
		return true
	}
	return len(ts) >= 4 && ts[:4] == fmt.Sprintf("%04d", year)
}

// filterToYear restricts report entities to the tax period. The engine
// still consumes the full event history so basis established in earlier
// years carries into the period correctly.
func filterToYear(opts Options, ledger []*domain.TransferEvent, disposals []*domain.Disposal, income []*domain.IncomeEvent) ([]*domain.TransferEvent, []*domain.Disposal, []*domain.IncomeEvent) {
	if opts.Year == 0 {
		return ledger, disposals, income
	}

	var l []*domain.TransferEvent
	for _, e := range ledger {
		if inYear(e.Timestamp, opts.Year) {
			l = append(l, e)
		}
	}
	var d []*domain.Disposal
	for _, x := range disposals {
		if inYear(x.Timestamp, opts.Year) {
			d = append(d, x)
		}
	}
	var in []*domain.IncomeEvent
	for _, x := range income {
		if inYear(x.Timestamp, opts.Year) {
			in = append(in, x)
		}
	}
	return l, d, in
}

// newReport assembles the report envelope for an engine run.
func newReport(opts Options, j domain.Jurisdiction, ledger []*domain.TransferEvent, disposals []*domain.Disposal, income []*domain.IncomeEvent) *domain.TaxReport {
	ledger, disposals, income = filterToYear(opts, ledger, disposals, income)
	return &domain.TaxReport{
		ReportID:     idhash.ComputeReportID(opts.Wallet, j, opts.Year),
		Wallet:       opts.Wallet,
		Year:         opts.Year,
		Jurisdiction: j,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		Ledger:       ledger,
		Disposals:    disposals,
		IncomeEvents: income,
		Summary:      summarize(j, disposals, income),
	}
}

// parseTimestamp parses an ISO-8601 UTC timestamp. Malformed timestamps
// degrade to the zero time rather than aborting the batch.
func parseTimestamp(ts string) time.Time {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// reportProgress invokes the callback if configured.
func reportProgress(p Progress, processed, total int) {
	if p != nil {
		p(processed, total)
	}
}
