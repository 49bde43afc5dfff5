// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package econ defines the identity types, money arithmetic, and collaborator
// contracts shared by the market engine's packages.
package econ

import (
	"fmt"
	"math"
)

// MarketID identifies one tradeable venue bound to a location.
type MarketID uint32

// BaseID identifies the docking base a market sits on.
type BaseID uint32

// ItemDefID identifies an item type (definition), as opposed to a physical
// stack of that type.
type ItemDefID uint32

// ItemID identifies one physical item stack.
type ItemID uint64

// ContainerID identifies an item container (hangar, station storage, etc.).
type ContainerID uint64

// EntityID identifies a character or a corporation's root entity. Wallets,
// orders and notifications are keyed by EntityID.
type EntityID uint64

// CorporationID identifies a corporation.
type CorporationID uint64

// OrderID identifies a resting order row.
type OrderID uint64

// EntryKind labels a wallet or central-bank journal entry.
type EntryKind uint8

const (
	EntryMarketEscrow EntryKind = iota + 1
	EntryMarketEscrowRefund
	EntryMarketPurchase
	EntryMarketSale
	EntryMarketTax
	EntryVendorSale
	EntryVendorPurchase
)

// String returns the journal label for an EntryKind.
func (k EntryKind) String() string {
	switch k {
	case EntryMarketEscrow:
		return "market escrow"
	case EntryMarketEscrowRefund:
		return "market escrow refund"
	case EntryMarketPurchase:
		return "market purchase"
	case EntryMarketSale:
		return "market sale"
	case EntryMarketTax:
		return "market tax"
	case EntryVendorSale:
		return "vendor sale"
	case EntryVendorPurchase:
		return "vendor purchase"
	}
	return fmt.Sprintf("unknown entry kind %d", uint8(k))
}

// Quantity is an order's remaining size: a finite unit count, or infinite for
// vendor source/sink orders. The explicit variant replaces the legacy
// "quantity<=0 means infinite" sentinel so that impossible states (a finite
// order with negative quantity) cannot be represented.
type Quantity struct {
	units    uint32
	infinite bool
}

// Finite returns a finite Quantity of n units.
func Finite(n uint32) Quantity {
	return Quantity{units: n}
}

// Infinite returns the unlimited vendor Quantity.
func Infinite() Quantity {
	return Quantity{infinite: true}
}

// IsInfinite reports whether the quantity is the unlimited vendor variant.
func (q Quantity) IsInfinite() bool {
	return q.infinite
}

// Units returns the finite unit count. It is zero for the infinite variant;
// check IsInfinite first.
func (q Quantity) Units() uint32 {
	return q.units
}

// IsZero reports whether the quantity is an exhausted finite quantity. The
// infinite variant is never zero.
func (q Quantity) IsZero() bool {
	return !q.infinite && q.units == 0
}

// Sub decrements a finite quantity by n. Subtracting from the infinite
// variant is a no-op. Subtracting more than the remaining units is an error.
func (q Quantity) Sub(n uint32) (Quantity, error) {
	if q.infinite {
		return q, nil
	}
	if n > q.units {
		return q, NewError(ErrInvalidQuantity,
			fmt.Sprintf("cannot fill %d units of %d remaining", n, q.units))
	}
	return Quantity{units: q.units - n}, nil
}

// String returns "inf" for the infinite variant, the unit count otherwise.
func (q Quantity) String() string {
	if q.infinite {
		return "inf"
	}
	return fmt.Sprintf("%d", q.units)
}

// Gross returns the total credits for quantity units at pricePerUnit.
func Gross(pricePerUnit int64, quantity uint32) int64 {
	return pricePerUnit * int64(quantity)
}

// TaxDue computes the tax on gross at rate, rounded half away from zero.
// Seller net is gross-TaxDue, so a settlement conserves credits exactly.
func TaxDue(gross int64, rate float64) int64 {
	return int64(math.Round(float64(gross) * rate))
}

// ClampRate limits a tax rate to [0,1].
func ClampRate(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
