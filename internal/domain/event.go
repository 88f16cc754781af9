package domain

// EventKind distinguishes native coin movements from token transfers.
type EventKind string

// Event kinds.
const (
	KindXTZTransfer   EventKind = "xtz_transfer"
	KindTokenTransfer EventKind = "token_transfer"
)

// Direction of a transfer leg relative to the owning wallet.
type Direction string

// Directions.
const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// XTZ is the asset identifier for the native Tezos coin.
const XTZ = "XTZ"

// Classification is the closed set of semantic tax categories a transfer
// leg can be assigned. The classifier guarantees every event ends up with
// exactly one of these; anything unresolvable degrades to ClassUnknown.
type Classification string

// Classifications, in classifier precedence order.
const (
	ClassSelfTransfer   Classification = "self_transfer"
	ClassBakingReward   Classification = "baking_reward"
	ClassCEXDeposit     Classification = "cex_deposit"
	ClassCEXWithdrawal  Classification = "cex_withdrawal"
	ClassSwap           Classification = "swap"
	ClassNFTPurchase    Classification = "nft_purchase"
	ClassNFTSale        Classification = "nft_sale"
	ClassCreatorSale    Classification = "creator_sale"
	ClassDEXInteraction Classification = "dex_interaction"
	ClassLikelyGift     Classification = "likely_gift"
	ClassTokenGiftOut   Classification = "token_gift_out"
	ClassReceivedIncome Classification = "received_income"
	ClassTokenReceived  Classification = "token_received"
	ClassUnknown        Classification = "unknown"
)

// Confidence expresses how certain the classifier is about an assignment.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// CounterpartyType is the registry's static category for an address.
type CounterpartyType string

// Counterparty types.
const (
	CounterpartyUnknown     CounterpartyType = "unknown"
	CounterpartyOwnWallet   CounterpartyType = "own_wallet"
	CounterpartyBaker       CounterpartyType = "baker"
	CounterpartyCEX         CounterpartyType = "cex"
	CounterpartyDEX         CounterpartyType = "dex"
	CounterpartyMarketplace CounterpartyType = "marketplace"
)

// TransferEvent is an atomic movement of one asset in one direction,
// belonging to one on-chain operation. Two legs of the same operation
// share OpHash. Direction and Asset are immutable once fetched; only
// Classification, Confidence, Note and CounterpartyType are set by the
// classifier.
type TransferEvent struct {
	EventID      string    // deterministic ID, see idhash
	Wallet       string    // owning wallet address
	Timestamp    string    // ISO-8601 UTC ("2025-03-01T12:34:56Z"), lexicographically sortable
	Level        int64     // chain block height
	OpHash       string    // groups co-occurring legs of one operation
	Kind         EventKind // xtz_transfer | token_transfer
	Direction    Direction // in | out
	Counterparty string    // the other address on this leg
	Asset        string    // "XTZ" or "SYMBOL:contract:tokenId:standard"
	Quantity     float64   // non-negative, decimals-adjusted
	FeeXTZ       float64   // transaction fee in native units
	Mint         bool      // received with no originating sender (created, not transferred)
	LikelyNFT    bool      // zero-decimal, quantity-one FA2 transfer heuristic

	// Per-unit fiat quotes at the event's timestamp, keyed by currency.
	// Sourced externally; the core never fetches prices. A missing quote
	// reads as zero.
	Quotes map[Currency]float64

	// Set by the classifier.
	Classification   Classification
	Confidence       Confidence
	Note             string
	CounterpartyType CounterpartyType
	RelatedOpHash    string // paired leg's operation hash for detected swap patterns
}

// Quote returns the per-unit fair value in the given currency, or zero
// when no quote is recorded (data-quality gaps never abort a run).
func (e *TransferEvent) Quote(c Currency) float64 {
	if e.Quotes == nil {
		return 0
	}
	return e.Quotes[c]
}

// IsNative reports whether the event moves the native coin.
func (e *TransferEvent) IsNative() bool {
	return e.Asset == XTZ
}

// Currency is an ISO-4217 fiat currency code.
type Currency string

// Supported quote currencies.
const (
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
)

// Wallet is a tracked address together with its optional current delegate
// (Tezos baker the wallet delegates to).
type Wallet struct {
	Address  string
	Alias    string
	Delegate string // empty if not delegating
	AddedAt  string // ISO-8601 UTC
}
