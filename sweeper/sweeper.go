// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package sweeper runs the periodic expiry sweep: resting orders past their
// lifetime are cancelled through their market with the protection gate
// bypassed, returning escrow or custodied stacks to their owners.
package sweeper

import (
	"context"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/order"
)

const (
	// DefaultInterval is the sweep period.
	DefaultInterval = 5 * time.Minute

	// DefaultThresholdRatio expires an order once its age exceeds this
	// fraction of its configured duration.
	DefaultThresholdRatio = 1.0
)

// Canceller cancels one order with ownership and cancel-protection checks
// bypassed. *market.Market satisfies this.
type Canceller interface {
	ID() econ.MarketID
	CancelOrder(ctx context.Context, oid econ.OrderID, by econ.EntityID, force bool) error
}

// Sweeper scans for expired orders and cancels them market by market. Each
// cancel runs in its own transaction so one failure cannot block the rest of
// the sweep.
type Sweeper struct {
	store    db.OrderArchiver
	markets  map[econ.MarketID]Canceller
	interval time.Duration
	ratio    float64
	now      func() time.Time
}

// New constructs a Sweeper over the given markets. Zero interval or ratio
// select the defaults.
func New(store db.OrderArchiver, markets []Canceller, interval time.Duration, ratio float64) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if ratio <= 0 {
		ratio = DefaultThresholdRatio
	}
	byID := make(map[econ.MarketID]Canceller, len(markets))
	for _, mkt := range markets {
		byID[mkt.ID()] = mkt
	}
	return &Sweeper{
		store:    store,
		markets:  byID,
		interval: interval,
		ratio:    ratio,
		now:      time.Now,
	}
}

// Run sweeps once immediately, then on every tick until the context is
// canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep performs one pass: list expired orders, cancel each through its
// market. Errors are logged and do not stop the pass. Vendor and corp-scoped
// orders never appear in the expiry listing.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.store.ExpiredOrders(ctx, s.now(), s.ratio)
	if err != nil {
		log.Errorf("Expiry listing failed: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}
	log.Debugf("Sweeping %d expired orders", len(expired))

	var cancelled int
	for _, o := range expired {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := s.cancel(ctx, o); err != nil {
			log.Errorf("Failed to expire order %d on market %d: %v",
				o.ID, o.MarketID, err)
			continue
		}
		cancelled++
	}
	log.Infof("Expired %d of %d stale orders", cancelled, len(expired))
}

func (s *Sweeper) cancel(ctx context.Context, o *order.Order) error {
	mkt, found := s.markets[o.MarketID]
	if !found {
		return econ.NewError(econ.ErrConsistency, "order on unregistered market")
	}
	return mkt.CancelOrder(ctx, o.ID, 0, true)
}
