// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/order"
)

// expiredLister is a db.OrderArchiver stub. Only ExpiredOrders is reachable
// from a sweep; everything else panics.
type expiredLister struct {
	db.OrderArchiver
	expired []*order.Order
	err     error
	since   time.Time
	ratio   float64
}

func (l *expiredLister) ExpiredOrders(_ context.Context, now time.Time, ratio float64) ([]*order.Order, error) {
	l.since, l.ratio = now, ratio
	return l.expired, l.err
}

type cancelCall struct {
	oid   econ.OrderID
	by    econ.EntityID
	force bool
}

type fakeMarket struct {
	id    econ.MarketID
	fail  map[econ.OrderID]error
	calls []cancelCall
}

func (m *fakeMarket) ID() econ.MarketID { return m.id }

func (m *fakeMarket) CancelOrder(_ context.Context, oid econ.OrderID, by econ.EntityID, force bool) error {
	m.calls = append(m.calls, cancelCall{oid, by, force})
	return m.fail[oid]
}

func TestSweep(t *testing.T) {
	store := &expiredLister{expired: []*order.Order{
		{ID: 1, MarketID: 7},
		{ID: 2, MarketID: 8},
		{ID: 3, MarketID: 7},
	}}
	mkt7 := &fakeMarket{id: 7}
	mkt8 := &fakeMarket{id: 8}
	s := New(store, []Canceller{mkt7, mkt8}, 0, 0.5)

	s.Sweep(context.Background())

	if store.ratio != 0.5 {
		t.Errorf("ratio passed to listing = %f, want 0.5", store.ratio)
	}
	if len(mkt7.calls) != 2 || len(mkt8.calls) != 1 {
		t.Fatalf("cancel calls = %d/%d, want 2/1", len(mkt7.calls), len(mkt8.calls))
	}
	for _, call := range append(mkt7.calls, mkt8.calls...) {
		if !call.force || call.by != 0 {
			t.Errorf("cancel call %+v not a forced system cancel", call)
		}
	}
	if mkt7.calls[0].oid != 1 || mkt7.calls[1].oid != 3 || mkt8.calls[0].oid != 2 {
		t.Errorf("orders routed wrong: %+v %+v", mkt7.calls, mkt8.calls)
	}
}

// One failing cancel must not stop the rest of the pass.
func TestSweepContinuesOnFailure(t *testing.T) {
	store := &expiredLister{expired: []*order.Order{
		{ID: 1, MarketID: 7},
		{ID: 2, MarketID: 7},
		{ID: 3, MarketID: 7},
	}}
	mkt := &fakeMarket{
		id:   7,
		fail: map[econ.OrderID]error{2: errors.New("db down")},
	}
	s := New(store, []Canceller{mkt}, 0, 0)

	s.Sweep(context.Background())

	if len(mkt.calls) != 3 {
		t.Errorf("cancel calls = %d, want 3", len(mkt.calls))
	}
}

func TestSweepUnregisteredMarket(t *testing.T) {
	store := &expiredLister{expired: []*order.Order{
		{ID: 1, MarketID: 99},
		{ID: 2, MarketID: 7},
	}}
	mkt := &fakeMarket{id: 7}
	s := New(store, []Canceller{mkt}, 0, 0)

	s.Sweep(context.Background())

	// The unroutable order is skipped, the routable one still cancelled.
	if len(mkt.calls) != 1 || mkt.calls[0].oid != 2 {
		t.Errorf("cancel calls = %+v", mkt.calls)
	}
}

func TestSweepListingError(t *testing.T) {
	store := &expiredLister{err: errors.New("db down")}
	mkt := &fakeMarket{id: 7}
	s := New(store, []Canceller{mkt}, 0, 0)

	s.Sweep(context.Background())
	if len(mkt.calls) != 0 {
		t.Errorf("cancels attempted despite listing failure: %+v", mkt.calls)
	}
}

func TestSweepHonorsContext(t *testing.T) {
	store := &expiredLister{expired: []*order.Order{
		{ID: 1, MarketID: 7},
		{ID: 2, MarketID: 7},
	}}
	mkt := &fakeMarket{id: 7}
	s := New(store, []Canceller{mkt}, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Sweep(ctx)
	if len(mkt.calls) != 0 {
		t.Errorf("cancels attempted on dead context: %+v", mkt.calls)
	}
}

func TestDefaults(t *testing.T) {
	s := New(&expiredLister{}, nil, 0, 0)
	if s.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultInterval)
	}
	if s.ratio != DefaultThresholdRatio {
		t.Errorf("ratio = %f, want %f", s.ratio, DefaultThresholdRatio)
	}
}
