// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package market

import (
	"context"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/order"
)

// BestAsk returns the cheapest resting sell order for an item priced at or
// under limit, visible to the asking entity. Own orders are never returned.
// A db.ErrNoCounterOrder coded error means no order qualifies.
func (m *Market) BestAsk(ctx context.Context, def econ.ItemDefID, limit int64, asker econ.EntityID, corp econ.CorporationID) (*order.Order, error) {
	return m.store.BestSellOrder(ctx, &db.CounterQuery{
		Market:  m.info.ID,
		ItemDef: def,
		Price:   limit,
		Exclude: asker,
		Scope:   corp,
	})
}

// BestBid returns the highest resting buy order for an item priced at or
// above limit, visible to the asking entity. Own orders are never returned.
func (m *Market) BestBid(ctx context.Context, def econ.ItemDefID, limit int64, asker econ.EntityID, corp econ.CorporationID) (*order.Order, error) {
	return m.store.BestBuyOrder(ctx, &db.CounterQuery{
		Market:  m.info.ID,
		ItemDef: def,
		Price:   limit,
		Exclude: asker,
		Scope:   corp,
	})
}

// Orders lists the market's resting orders visible to the viewer:
// public orders plus those scoped to the viewer's corporation.
func (m *Market) Orders(ctx context.Context, viewer econ.EntityID) ([]*order.Order, error) {
	p, err := m.people.Participant(ctx, viewer)
	if err != nil {
		return nil, err
	}
	corp := p.Corporation()

	all, err := m.store.MarketOrders(ctx, m.info.ID)
	if err != nil {
		return nil, err
	}
	visible := all[:0]
	for _, o := range all {
		if o.Scope == 0 || o.Scope == corp {
			visible = append(visible, o)
		}
	}
	return visible, nil
}
