// Package registry provides static classification of known exchange,
// DEX/marketplace, and baker addresses. Pure lookup, no state beyond the
// tables themselves.
package registry

import "tezos-tax-lab/internal/domain"

// Known centralized exchange deposit/withdrawal addresses.
var knownCEX = map[string]string{
	"tz1S8MNvuFEUsWgjHvi3AxibRBf388NhT1q2": "Binance",
	"tz1irJKkXS2DBWkU1NnmFQx1c1L7pbGg4yhk": "Coinbase",
	"tz1Kf25fX1VdmYGSEzwFy1wNmkbSEZ2V83sY": "Kraken",
	"tz1eEnQhbwf6trb8Q8mPb2RaPkNk2rN7BKi8": "Gate.io",
	"tz1X1fpAZtwqk6y9XqNTWjGk6ArFCWHMhMVY": "OKX",
}

// Known decentralized exchange and NFT marketplace contracts.
var knownDEX = map[string]string{
	"KT1K4EwTpbvYN9agJdjpyJm4ZZdhpUNKB3F6": "QuipuSwap",
	"KT1PnUZCp3u2KzWr93pn4DD7HAJnm3rWVrgn": "QuipuSwap v2",
	"KT1TxqZ8QtKvLu3V3JH7Gx58n7Co8pgtpQU5": "Plenty",
	"KT1WvzYHCNBvDSdwafTHv7nJ1dWmZ8GCYuuC": "objkt.com",
	"KT1Hkg5qeNhfwpKW4fXvq7HGZB9z2EnmCCA9": "hic et nunc",
	"KT1M2JnD1wsg7w2B4UXJXtKQPuDUpU2L7cJJ": "Teia",
}

// Known public bakers (validators) that pay out staking rewards.
var knownBakers = map[string]string{
	"tz1aRoaRhSpRYvFdyvgWLL6TGyRoGF51wDjM": "Everstake",
	"tz1Scdr2HsZiQjc7bHMeBbmDRXYVvdhjJbBh": "Baking Benjamins",
	"tz1NEKxGEHsFufk87CVZcrqWu8o22qh46GK6": "Tezos Capital Legacy",
	"tz1YKh8T79LAtWxX29N5VedCSmaZGw9LNVxQ": "Stake.fish",
	"tz1V4qCyvPKZ5UeqdH14HN42rxvNPQfc9UZg": "Chorus One",
}

// Registry answers counterparty lookups against the static tables plus any
// caller-supplied extra entries.
type Registry struct {
	cex    map[string]string
	dex    map[string]string
	bakers map[string]string
}

// New creates a Registry seeded with the built-in tables.
func New() *Registry {
	r := &Registry{
		cex:    make(map[string]string, len(knownCEX)),
		dex:    make(map[string]string, len(knownDEX)),
		bakers: make(map[string]string, len(knownBakers)),
	}
	for addr, label := range knownCEX {
		r.cex[addr] = label
	}
	for addr, label := range knownDEX {
		r.dex[addr] = label
	}
	for addr, label := range knownBakers {
		r.bakers[addr] = label
	}
	return r
}

// AddCEX registers an additional exchange address.
func (r *Registry) AddCEX(addr, label string) { r.cex[addr] = label }

// AddDEX registers an additional DEX or marketplace contract.
func (r *Registry) AddDEX(addr, label string) { r.dex[addr] = label }

// AddBaker registers an additional baker address.
func (r *Registry) AddBaker(addr, label string) { r.bakers[addr] = label }

// Lookup returns the counterparty type for an address and, when known, the
// label it is registered under. Unrecognized addresses return
// CounterpartyUnknown.
func (r *Registry) Lookup(addr string) (domain.CounterpartyType, string) {
	if label, ok := r.cex[addr]; ok {
		return domain.CounterpartyCEX, label
	}
	if label, ok := r.dex[addr]; ok {
		return domain.CounterpartyDEX, label
	}
	if label, ok := r.bakers[addr]; ok {
		return domain.CounterpartyBaker, label
	}
	return domain.CounterpartyUnknown, ""
}

// IsCEX reports whether addr is a known centralized exchange address.
func (r *Registry) IsCEX(addr string) bool {
	_, ok := r.cex[addr]
	return ok
}

// IsDEX reports whether addr is a known DEX or marketplace contract.
func (r *Registry) IsDEX(addr string) bool {
	_, ok := r.dex[addr]
	return ok
}

// IsBaker reports whether addr is a known baker.
func (r *Registry) IsBaker(addr string) bool {
	_, ok := r.bakers[addr]
	return ok
}
