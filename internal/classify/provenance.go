package classify

import (
	"sort"

	"tezos-tax-lab/internal/domain"
)

// provenance records how a wallet ever came to hold an asset. An asset
// that was only ever minted and never independently acquired is treated
// on disposal as self-created property (ordinary income on sale, not
// capital gain).
type provenance struct {
	minted   bool // received at least once with no originating sender
	acquired bool // received at least once via ordinary (non-mint) transfer
}

// mintOnly reports whether the asset was created by the wallet and never
// acquired externally.
func (p provenance) mintOnly() bool {
	return p.minted && !p.acquired
}

type provKey struct {
	wallet string
	asset  string
}

// scanProvenance walks all events chronologically and records per
// (wallet, asset) whether the asset was ever minted and ever ordinarily
// acquired. This must run before per-event classification because the
// creator-sale rule looks across the whole event set.
func scanProvenance(events []*domain.TransferEvent) map[provKey]provenance {
	sorted := make([]*domain.TransferEvent, 0, len(events))
	for _, e := range events {
		if e != nil {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	out := make(map[provKey]provenance)
	for _, e := range sorted {
		if e.Direction != domain.DirectionIn {
			continue
		}
		key := provKey{wallet: e.Wallet, asset: e.Asset}
		p := out[key]
		if e.Mint {
			p.minted = true
		} else {
			p.acquired = true
		}
		out[key] = p
	}
	return out
}
