package domain

// QuotePoint is one historical per-unit fair-value observation for an
// asset in one fiat currency. Corresponds to the quote_timeseries table in
// ClickHouse.
type QuotePoint struct {
	Asset       string   // "XTZ" or token identifier
	Currency    Currency // quote currency
	TimestampMs int64    // Unix timestamp in milliseconds
	Price       float64  // per-unit fair value
	Source      string   // oracle the quote came from
}
