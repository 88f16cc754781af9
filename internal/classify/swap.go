package classify

import "tezos-tax-lab/internal/domain"

// opPattern holds at most one outgoing and one incoming leg per asset
// class (native vs token) within a single operation's legs, in original
// event order.
type opPattern struct {
	nativeOut *domain.TransferEvent
	nativeIn  *domain.TransferEvent
	tokenOut  *domain.TransferEvent
	tokenIn   *domain.TransferEvent
}

// buildPattern selects the pattern legs from an operation group. Later
// legs of an already-claimed class are left out of the pattern; they fall
// through to the lower-precedence rules.
func buildPattern(group []*domain.TransferEvent) opPattern {
	var p opPattern
	for _, e := range group {
		if e.Quantity <= 0 {
			continue
		}
		switch {
		case e.IsNative() && e.Direction == domain.DirectionOut:
			if p.nativeOut == nil {
				p.nativeOut = e
			}
		case e.IsNative() && e.Direction == domain.DirectionIn:
			if p.nativeIn == nil {
				p.nativeIn = e
			}
		case e.Direction == domain.DirectionOut:
			if p.tokenOut == nil {
				p.tokenOut = e
			}
		case e.Direction == domain.DirectionIn:
			if p.tokenIn == nil {
				p.tokenIn = e
			}
		}
	}
	return p
}

// swapMatch is the outcome of running swap detection from one leg's
// perspective.
type swapMatch struct {
	class domain.Classification
	note  string
}

// detectSwap classifies event e within its operation pattern. Detection is
// symmetric: each leg of a detected pattern receives the same
// classification with a role-specific note. Returns ok=false when e is not
// part of a recognized pattern.
func detectSwap(e *domain.TransferEvent, p opPattern, prov map[provKey]provenance) (swapMatch, bool) {
	// Native-out + token-in: swap, or NFT purchase when the token leg
	// carries the likely-NFT heuristic.
	if p.nativeOut != nil && p.tokenIn != nil && (e == p.nativeOut || e == p.tokenIn) {
		class := domain.ClassSwap
		if p.tokenIn.LikelyNFT {
			class = domain.ClassNFTPurchase
		}
		if e == p.nativeOut {
			return swapMatch{class: class, note: "paid native leg of " + string(class)}, true
		}
		return swapMatch{class: class, note: "received token leg of " + string(class)}, true
	}

	// Token-out + native-in: swap, NFT sale, or creator sale when the
	// disposed token's provenance is mint-only.
	if p.tokenOut != nil && p.nativeIn != nil && (e == p.tokenOut || e == p.nativeIn) {
		class := domain.ClassSwap
		switch {
		case prov[provKey{wallet: p.tokenOut.Wallet, asset: p.tokenOut.Asset}].mintOnly():
			class = domain.ClassCreatorSale
		case p.tokenOut.LikelyNFT:
			class = domain.ClassNFTSale
		}
		if e == p.tokenOut {
			return swapMatch{class: class, note: "disposed token leg of " + string(class)}, true
		}
		return swapMatch{class: class, note: "received native leg of " + string(class)}, true
	}

	// Token-out + token-in with no native leg: token-to-token swap.
	if p.tokenOut != nil && p.tokenIn != nil && p.nativeOut == nil && p.nativeIn == nil &&
		(e == p.tokenOut || e == p.tokenIn) {
		if e == p.tokenOut {
			return swapMatch{class: domain.ClassSwap, note: "disposed leg of token-to-token swap"}, true
		}
		return swapMatch{class: domain.ClassSwap, note: "received leg of token-to-token swap"}, true
	}

	return swapMatch{}, false
}
