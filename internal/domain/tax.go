package domain

// Jurisdiction selects which cost-basis engine a report is produced under.
type Jurisdiction string

// Jurisdictions.
const (
	JurisdictionIRS  Jurisdiction = "IRS"  // US: FIFO lot matching
	JurisdictionHMRC Jurisdiction = "HMRC" // UK: same-day / 30-day / Section 104
	JurisdictionCRA  Jurisdiction = "CRA"  // Canada: adjusted cost base, 50% inclusion
	JurisdictionATO  Jurisdiction = "ATO"  // Australia: FIFO with long-term CGT discount
)

// ReportCurrency returns the fiat currency a jurisdiction reports in.
func (j Jurisdiction) ReportCurrency() Currency {
	switch j {
	case JurisdictionHMRC:
		return CurrencyGBP
	case JurisdictionCRA:
		return CurrencyCAD
	case JurisdictionATO:
		return CurrencyAUD
	default:
		return CurrencyUSD
	}
}

// Lot is a quantity of an asset acquired at a known per-unit cost basis.
// Lots are consumed oldest-first by the FIFO engines; Quantity is never
// negative.
type Lot struct {
	AcquiredAt string  // ISO-8601 UTC acquisition timestamp
	Quantity   float64 // remaining quantity
	BasisPer   float64 // per-unit cost basis in the report currency
	SourceID   string  // event that created the lot
}

// LotConsumption records one lot's (or the pool's) contribution to a
// disposal.
type LotConsumption struct {
	AcquiredAt string  `json:"from_acquired_ts,omitempty"`
	Quantity   float64 `json:"take_qty"`
	CostPer    float64 `json:"cost_per"`
	Rule       string  `json:"rule,omitempty"` // "same-day" | "30-day" | "S104" | "ACB" | "" for plain FIFO
}

// Disposal is a taxable reduction in holdings realized against one or more
// lots or a pool. Gain is always Proceeds - Cost and is never recomputed
// after creation.
type Disposal struct {
	EventID    string
	Timestamp  string
	Asset      string
	Quantity   float64
	FMVPerUnit float64 // per-unit fair value used for proceeds
	Proceeds   float64
	Cost       float64
	Gain       float64
	FeeXTZ     float64
	OpHash     string
	Breakdown  []LotConsumption
	Note       string

	// Jurisdiction-specific fields. Zero where not applicable.
	LongTerm    bool    // ATO: any portion held >12 months
	TaxableGain float64 // CRA: gain * inclusion rate; ATO: gain after discount
}

// IncomeEvent records ordinary/business/miscellaneous income recognized at
// fair-market value on receipt. Distinct from Disposal: some jurisdictions
// treat the same underlying transfer as income on one leg and never count
// the other leg as a capital disposal.
type IncomeEvent struct {
	EventID        string
	Timestamp      string
	Asset          string
	Quantity       float64
	FMVPerUnit     float64
	Amount         float64 // Quantity * FMVPerUnit at receipt
	Classification Classification
	OpHash         string
	Note           string
}

// TaxSummary aggregates a single engine run. Monetary totals are rounded
// to 2 decimal places, round-half-up.
type TaxSummary struct {
	Jurisdiction   Jurisdiction `json:"jurisdiction"`
	Currency       Currency     `json:"currency"`
	TotalDisposals int          `json:"totalDisposals"`
	TotalProceeds  float64      `json:"totalProceeds"`
	TotalCostBasis float64      `json:"totalCostBasis"`
	TotalGain      float64      `json:"totalGain"`

	// TaxableGain is set by engines applying an inclusion rate or discount
	// (CRA, ATO). For IRS/HMRC it equals TotalGain.
	TaxableGain float64 `json:"taxableGain"`

	// ATO split.
	ShortTermGain float64 `json:"shortTermGain,omitempty"`
	LongTermGain  float64 `json:"longTermGain,omitempty"`
	CGTDiscount   float64 `json:"cgtDiscount,omitempty"`

	// Income totals, all at full receipt-time fair value.
	TotalIncome    float64 `json:"totalIncome"`
	StakingIncome  float64 `json:"stakingIncome"`
	CreatorIncome  float64 `json:"creatorIncome"`
	ReceivedIncome float64 `json:"receivedIncome"`
}

// TaxReport is the output of exactly one engine run over one jurisdiction
// and one tax period. All entities are value objects scoped to the
// generating call.
type TaxReport struct {
	ReportID     string
	Wallet       string
	Year         int
	Jurisdiction Jurisdiction
	GeneratedAt  string // ISO-8601 UTC

	Ledger       []*TransferEvent
	Disposals    []*Disposal
	IncomeEvents []*IncomeEvent
	Summary      TaxSummary
}
