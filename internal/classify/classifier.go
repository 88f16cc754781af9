// Package classify assigns each transfer event a semantic tax
// classification and confidence. Classification is deterministic and
// idempotent: repeat runs over the same events with the same wallet and
// delegate context produce identical output. It never drops events and
// never fails a batch; unresolvable cases degrade to unknown/low.
package classify

import (
	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/registry"
)

// Classifier annotates transfer events using the address registry, the
// caller's own wallet set, and per-wallet delegate addresses.
type Classifier struct {
	registry *registry.Registry
}

// New creates a Classifier backed by the given registry.
func New(reg *registry.Registry) *Classifier {
	return &Classifier{registry: reg}
}

// Classify annotates events in place and returns the same slice. Only
// Classification, Confidence, Note, CounterpartyType and RelatedOpHash are
// mutated; direction and asset are never touched. Nil entries are skipped.
func (c *Classifier) Classify(
	events []*domain.TransferEvent,
	ownedWallets []string,
	delegates map[string]string,
) []*domain.TransferEvent {
	owned := make(map[string]struct{}, len(ownedWallets))
	for _, a := range ownedWallets {
		owned[a] = struct{}{}
	}

	prov := scanProvenance(events)

	// Group legs by (wallet, opHash) for same-operation pattern detection.
	type groupKey struct {
		wallet string
		opHash string
	}
	groups := make(map[groupKey][]*domain.TransferEvent)
	for _, e := range events {
		if e == nil || e.OpHash == "" {
			continue
		}
		k := groupKey{wallet: e.Wallet, opHash: e.OpHash}
		groups[k] = append(groups[k], e)
	}

	for _, e := range events {
		if e == nil {
			continue
		}
		group := groups[groupKey{wallet: e.Wallet, opHash: e.OpHash}]
		c.classifyOne(e, group, owned, delegates, prov)
	}

	return events
}

// classifyOne applies the precedence rules to a single event. First
// matching rule wins.
func (c *Classifier) classifyOne(
	e *domain.TransferEvent,
	group []*domain.TransferEvent,
	owned map[string]struct{},
	delegates map[string]string,
	prov map[provKey]provenance,
) {
	e.CounterpartyType = c.counterpartyType(e, owned)

	// Rule 1: counterparty is one of the caller's own wallets.
	if _, ok := owned[e.Counterparty]; ok {
		c.set(e, domain.ClassSelfTransfer, domain.ConfidenceHigh, "transfer between own wallets")
		return
	}

	// Rule 2: incoming native asset from a known baker or the wallet's
	// currently recorded delegate.
	if e.Direction == domain.DirectionIn && e.IsNative() {
		if c.registry.IsBaker(e.Counterparty) || (delegates[e.Wallet] != "" && e.Counterparty == delegates[e.Wallet]) {
			c.set(e, domain.ClassBakingReward, domain.ConfidenceHigh, "staking payout from baker")
			return
		}
	}

	// Rule 3: counterparty is a known centralized exchange.
	if c.registry.IsCEX(e.Counterparty) {
		if e.Direction == domain.DirectionOut {
			c.set(e, domain.ClassCEXDeposit, domain.ConfidenceHigh, "deposit to exchange; basis carries to off-chain sale")
		} else {
			c.set(e, domain.ClassCEXWithdrawal, domain.ConfidenceHigh, "withdrawal from exchange; basis set to receipt fair value")
		}
		return
	}

	// Rule 4: same-operation swap/purchase/sale detection.
	if len(group) >= 2 {
		if m, ok := detectSwap(e, buildPattern(group), prov); ok {
			c.set(e, m.class, domain.ConfidenceHigh, m.note)
			e.RelatedOpHash = e.OpHash
			return
		}
	}

	// Rule 5: known DEX/marketplace with no detected swap pattern.
	if c.registry.IsDEX(e.Counterparty) {
		c.set(e, domain.ClassDEXInteraction, domain.ConfidenceMedium, "DEX interaction without detected swap pattern; review")
		return
	}

	// Rule 6: disposing an asset the wallet only ever minted.
	if e.Direction == domain.DirectionOut && prov[provKey{wallet: e.Wallet, asset: e.Asset}].mintOnly() {
		c.set(e, domain.ClassCreatorSale, domain.ConfidenceMedium, "disposal of self-created asset")
		return
	}

	// Rule 7: outgoing to an unrecognized address with no incoming leg in
	// the same operation. Bakers are recognized addresses: an outgoing
	// transfer to one is not a gift, it falls through to unknown.
	if e.Direction == domain.DirectionOut && !c.registry.IsBaker(e.Counterparty) && !c.hasIncomingLeg(group) {
		if e.IsNative() {
			c.set(e, domain.ClassLikelyGift, domain.ConfidenceMedium, "outgoing native transfer with no return leg")
		} else {
			c.set(e, domain.ClassTokenGiftOut, domain.ConfidenceMedium, "outgoing token transfer with no return leg")
		}
		return
	}

	// Rules 8-9: incoming from an unrecognized external address.
	if e.Direction == domain.DirectionIn {
		if e.IsNative() {
			c.set(e, domain.ClassReceivedIncome, domain.ConfidenceHigh, "incoming native transfer from external address")
		} else {
			c.set(e, domain.ClassTokenReceived, domain.ConfidenceMedium, "incoming token; basis set to receipt fair value")
		}
		return
	}

	// Rule 10: default.
	c.set(e, domain.ClassUnknown, domain.ConfidenceLow, "unclassified; manual review required")
}

// set writes the classification fields, clearing any stale swap link so
// that reclassification stays idempotent.
func (c *Classifier) set(e *domain.TransferEvent, class domain.Classification, conf domain.Confidence, note string) {
	e.Classification = class
	e.Confidence = conf
	e.Note = note
	e.RelatedOpHash = ""
}

// counterpartyType resolves the registry category for the event's
// counterparty.
func (c *Classifier) counterpartyType(e *domain.TransferEvent, owned map[string]struct{}) domain.CounterpartyType {
	if _, ok := owned[e.Counterparty]; ok {
		return domain.CounterpartyOwnWallet
	}
	t, _ := c.registry.Lookup(e.Counterparty)
	return t
}

// hasIncomingLeg reports whether any leg of the group is incoming with a
// positive quantity.
func (c *Classifier) hasIncomingLeg(group []*domain.TransferEvent) bool {
	for _, g := range group {
		if g.Direction == domain.DirectionIn && g.Quantity > 0 {
			return true
		}
	}
	return false
}
