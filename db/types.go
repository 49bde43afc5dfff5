// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package db

import (
	"time"

	"github.com/orbitforge/worldmarket/econ"
)

// PriceBucket is the alignment of trade-sample buckets in the price ledger.
const PriceBucket = 6 * time.Hour

// PriceWindow is the trailing window summed when computing an average price.
const PriceWindow = 14 * 24 * time.Hour

// BucketStart aligns t down to the containing price bucket.
func BucketStart(t time.Time) time.Time {
	return t.UTC().Truncate(PriceBucket)
}

// PriceSample is one time-bucketed trade record in the append-only price
// ledger. Samples are never mutated after their bucket closes, only summed
// over a trailing window.
type PriceSample struct {
	MarketID   econ.MarketID
	ItemDef    econ.ItemDefID
	Bucket     time.Time
	TotalPrice int64
	Quantity   int64
	// High and Low track the per-unit price extremes seen within the
	// bucket's day.
	High int64
	Low  int64
}

// TaxChange is one append-only record of a per-market tax-rate override.
type TaxChange struct {
	// OwnerID is the corporation profiting from the base's market tax.
	OwnerID     econ.CorporationID
	CharacterID econ.EntityID
	BaseID      econ.BaseID
	ChangeFrom  float64
	ChangeTo    float64
	EventTime   time.Time
}

// MarketInfo is the persisted configuration of one venue.
type MarketInfo struct {
	ID   econ.MarketID
	Name string
	// BaseID is the docking base the market sits on.
	BaseID econ.BaseID
	// OwnerCorp is the corporation profiting from the market tax on a
	// player-ownable base. Zero for infrastructure-owned bases.
	OwnerCorp econ.CorporationID
	// PlayerOwned marks the base as player-ownable, which gates in-game
	// tax overrides.
	PlayerOwned bool
	// Sandbox marks the market as sitting on a training zone. Sandbox
	// markets never touch the central bank, charge no tax, and are
	// excluded from the world average.
	Sandbox bool
	// TaxRate is the market's configured tax rate in [0,1].
	TaxRate float64
	// PublicContainer receives the stacks of cancelled and expired sell
	// orders.
	PublicContainer econ.ContainerID
	// HangarContainer holds stacks under market custody while their sell
	// orders rest.
	HangarContainer econ.ContainerID
}

// DefaultTaxRate applies to markets with no configured override.
const DefaultTaxRate = 0.12
