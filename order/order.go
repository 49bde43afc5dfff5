// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package order defines the resting order model and its lifecycle
// predicates. Orders are created by the market aggregate, persisted by an
// order store, partially filled in place, and deleted exactly when a finite
// quantity reaches zero, when they expire, or when their owner cancels them.
package order

import (
	"time"

	"github.com/orbitforge/worldmarket/econ"
)

// CancelProtection is the minimum age before a player may cancel their own
// order. The cleanup sweeper bypasses this gate for true expiry.
const CancelProtection = 10 * time.Minute

// Order is a resting intent to buy or sell a quantity of one item type at a
// per-unit price.
type Order struct {
	ID       econ.OrderID
	MarketID econ.MarketID
	// ItemID is the physical stack held in market custody. It is zero for
	// buy orders, which carry no stack until filled.
	ItemID    econ.ItemID
	ItemDef   econ.ItemDefID
	Submitter econ.EntityID
	// SubmittedAt is the server time the order was persisted.
	SubmittedAt time.Time
	// Duration is the order's lifetime. Zero means the order never
	// expires, which is reserved for permanent vendor orders.
	Duration time.Duration
	// Price is the per-unit price in credits. Never negative.
	Price    int64
	Quantity econ.Quantity
	Sell     bool
	// CorpWallet selects the submitter's corporation wallet for
	// settlement and escrow instead of their personal wallet.
	CorpWallet bool
	// Vendor marks an infrastructure order. Vendor orders are never
	// expired by the sweeper and are immune to player-issued cancels.
	Vendor bool
	// Scope restricts visibility to one corporation's members. Zero is
	// public.
	Scope econ.CorporationID
}

// Validate checks the static order invariants.
func (o *Order) Validate() error {
	if o.Price < 0 {
		return econ.ErrInvalidPrice
	}
	if o.Quantity.IsInfinite() {
		if !o.Vendor {
			return econ.NewError(econ.ErrInvalidQuantity,
				"only vendor orders may be infinite")
		}
		return nil
	}
	if o.Quantity.IsZero() {
		return econ.ErrInvalidQuantity
	}
	return nil
}

// CanModify reports whether the cancel-protection window has elapsed, i.e.
// now >= SubmittedAt + CancelProtection.
func (o *Order) CanModify(now time.Time) bool {
	return !now.Before(o.SubmittedAt.Add(CancelProtection))
}

// ExpiresAt returns the order's expiry time. The second return is false for
// orders that never expire.
func (o *Order) ExpiresAt() (time.Time, bool) {
	if o.Duration == 0 {
		return time.Time{}, false
	}
	return o.SubmittedAt.Add(o.Duration), true
}

// ExpiredBy reports whether the order's age exceeds thresholdRatio of its
// duration at the given time. Vendor and scoped orders are never expired by
// the sweeper; this predicate does not check those flags.
func (o *Order) ExpiredBy(now time.Time, thresholdRatio float64) bool {
	if o.Duration == 0 {
		return false
	}
	threshold := time.Duration(float64(o.Duration) * thresholdRatio)
	return now.Sub(o.SubmittedAt) > threshold
}

// Escrow is the deposit a resting buy order holds: price times remaining
// quantity. It is zero for sell orders and meaningless for infinite vendor
// orders.
func (o *Order) Escrow() int64 {
	if o.Sell || o.Quantity.IsInfinite() {
		return 0
	}
	return econ.Gross(o.Price, o.Quantity.Units())
}
