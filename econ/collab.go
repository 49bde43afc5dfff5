// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package econ

import "context"

// Role is a corporate role bit. A character may hold several roles in the
// corporation they are a member of.
type Role uint32

const (
	RoleCEO Role = 1 << iota
	RoleDeputyCEO
	RoleAccountant
)

// TaxRoles are the roles authorized to override a player-owned base's market
// tax for the profiting corporation.
const TaxRoles = RoleCEO | RoleDeputyCEO | RoleAccountant

// Participant is the market engine's view of a character or corporation root
// entity. The game's entity subsystem owns the backing records.
type Participant interface {
	// ID is the entity's identity key.
	ID() EntityID
	// Corporation is the corporation the entity belongs to, or 0.
	Corporation() CorporationID
	// TaxBonus is the entity's personal market-tax reduction, subtracted
	// from the market's configured rate before clamping.
	TaxBonus() float64
	// HasRole reports whether the entity holds any of the given roles in
	// the given corporation.
	HasRole(corp CorporationID, roles Role) bool
	// DeliveryContainer is the entity's delivery hangar at the given base,
	// where purchased stacks land when the buyer is not present.
	DeliveryContainer(base BaseID) ContainerID
}

// Directory resolves Participants by identity key.
type Directory interface {
	Participant(ctx context.Context, id EntityID) (Participant, error)
}

// Notifier delivers asynchronous events to characters. Implementations must
// be safe for concurrent use. The engine invokes it only after a settlement
// transaction has committed.
type Notifier interface {
	SendToCharacter(char EntityID, event string, payload any)
}

// VisibilitySource reports the markets a character may see. The game's
// location/standings subsystem owns the underlying rules; the registry caches
// results with a short TTL.
type VisibilitySource interface {
	VisibleMarkets(ctx context.Context, char EntityID) ([]MarketID, error)
}
