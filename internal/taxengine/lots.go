package taxengine

import "tezos-tax-lab/internal/domain"

// Epsilon absorbs floating-point drift in quantity comparisons. A lot or
// pool with remaining quantity at or below it is treated as empty.
const Epsilon = 1e-12

// lotQueue is a FIFO queue of acquisition lots for one asset. Consumption
// order is strictly acquisition-timestamp ascending, ties broken by
// original event order (push order).
type lotQueue struct {
	lots []*domain.Lot
}

// push appends a new lot.
func (q *lotQueue) push(lot *domain.Lot) {
	q.lots = append(q.lots, lot)
}

// consume draws qty from the queue oldest-first. If the lots run out, the
// remainder is consumed at zero basis. Returns the total cost consumed and
// a per-lot breakdown.
func (q *lotQueue) consume(qty float64) (float64, []domain.LotConsumption) {
	cost := 0.0
	var breakdown []domain.LotConsumption

	for qty > Epsilon && len(q.lots) > 0 {
		lot := q.lots[0]
		take := qty
		if lot.Quantity < take {
			take = lot.Quantity
		}
		cost += take * lot.BasisPer
		breakdown = append(breakdown, domain.LotConsumption{
			AcquiredAt: lot.AcquiredAt,
			Quantity:   take,
			CostPer:    lot.BasisPer,
		})
		lot.Quantity -= take
		qty -= take
		if lot.Quantity <= Epsilon {
			q.lots = q.lots[1:]
		}
	}

	if qty > Epsilon {
		// No acquisition history left: zero-cost-basis fallback.
		breakdown = append(breakdown, domain.LotConsumption{
			Quantity: qty,
			CostPer:  0,
			Rule:     "zero-basis",
		})
	}

	return cost, breakdown
}

// lotRegistry maps asset identifier to its FIFO queue. A fresh registry is
// allocated per engine run so no lot state can leak across calls.
type lotRegistry struct {
	queues map[string]*lotQueue
}

func newLotRegistry() *lotRegistry {
	return &lotRegistry{queues: make(map[string]*lotQueue)}
}

// queue returns the lot queue for an asset, creating it on first use.
func (r *lotRegistry) queue(asset string) *lotQueue {
	q, ok := r.queues[asset]
	if !ok {
		q = &lotQueue{}
		r.queues[asset] = q
	}
	return q
}

// acbPool is a single running average-cost aggregate for one asset.
// Additions accumulate quantity and cost; consumption draws pro-rata at
// the current average and clamps at zero to avoid negative pools from
// data gaps.
type acbPool struct {
	quantity float64
	cost     float64
}

// add accumulates an acquisition.
func (p *acbPool) add(qty, cost float64) {
	p.quantity += qty
	p.cost += cost
}

// consume draws qty at the pool's running average cost. Quantity beyond
// the pool's holdings is consumed at zero cost.
func (p *acbPool) consume(qty float64, rule string) (float64, []domain.LotConsumption) {
	if qty <= Epsilon {
		return 0, nil
	}
	if p.quantity <= Epsilon {
		return 0, []domain.LotConsumption{{Quantity: qty, CostPer: 0, Rule: "zero-basis"}}
	}

	avg := p.cost / p.quantity
	take := qty
	if p.quantity < take {
		take = p.quantity
	}
	cost := take * avg

	breakdown := []domain.LotConsumption{{Quantity: take, CostPer: avg, Rule: rule}}

	p.quantity -= take
	p.cost -= cost
	if p.quantity <= Epsilon {
		p.quantity = 0
		p.cost = 0
	}

	if rest := qty - take; rest > Epsilon {
		breakdown = append(breakdown, domain.LotConsumption{Quantity: rest, CostPer: 0, Rule: "zero-basis"})
	}

	return cost, breakdown
}

// poolRegistry maps asset identifier to its average-cost pool, allocated
// fresh per engine run.
type poolRegistry struct {
	pools map[string]*acbPool
}

func newPoolRegistry() *poolRegistry {
	return &poolRegistry{pools: make(map[string]*acbPool)}
}

func (r *poolRegistry) pool(asset string) *acbPool {
	p, ok := r.pools[asset]
	if !ok {
		p = &acbPool{}
		r.pools[asset] = p
	}
	return p
}
