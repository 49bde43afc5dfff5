// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/db/driver/pg/internal"
	"github.com/orbitforge/worldmarket/econ"
)

// participant is the engine's read projection of a game entity. It satisfies
// econ.Participant.
type participant struct {
	id        econ.EntityID
	corp      econ.CorporationID
	roles     econ.Role
	taxBonus  float64
	homeBase  econ.BaseID
	deliveryC econ.ContainerID
}

func (p *participant) ID() econ.EntityID               { return p.id }
func (p *participant) Corporation() econ.CorporationID { return p.corp }
func (p *participant) TaxBonus() float64               { return p.taxBonus }

func (p *participant) HasRole(corp econ.CorporationID, roles econ.Role) bool {
	return p.corp == corp && p.roles&roles != 0
}

func (p *participant) DeliveryContainer(base econ.BaseID) econ.ContainerID {
	// The projection carries a single delivery hangar at the entity's home
	// base. Off-base deliveries land there as well.
	return p.deliveryC
}

// Participant resolves one entity projection row. Satisfies econ.Directory.
func (a *Archiver) Participant(ctx context.Context, id econ.EntityID) (econ.Participant, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return selectParticipant(ctx, a.db, id)
}

func selectParticipant(ctx context.Context, dbe executor, id econ.EntityID) (econ.Participant, error) {
	var p participant
	var roles int64
	err := dbe.QueryRowContext(ctx, internal.SelectParticipant, id).
		Scan(&p.id, &p.corp, &roles, &p.taxBonus, &p.homeBase, &p.deliveryC)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ArchiveError{Code: db.ErrUnknownEntity,
			Detail: fmt.Sprintf("entity %d", id)}
	}
	if err != nil {
		return nil, err
	}
	p.roles = econ.Role(roles)
	return &p, nil
}
