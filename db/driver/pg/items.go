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

func unknownItem(item econ.ItemID) db.ArchiveError {
	return db.ArchiveError{Code: db.ErrUnknownItem,
		Detail: fmt.Sprintf("stack %d", item)}
}

func moveStack(ctx context.Context, dbe executor, item econ.ItemID, to econ.ContainerID) error {
	n, err := sqlExec(ctx, dbe, internal.MoveStack, to, item)
	if err != nil {
		return err
	}
	if n == 0 {
		return unknownItem(item)
	}
	return nil
}

func stackForUpdate(ctx context.Context, dbe executor, item econ.ItemID) (econ.ItemDefID, uint32, error) {
	var def econ.ItemDefID
	var units int64
	err := dbe.QueryRowContext(ctx, internal.SelectStackForUpdate, item).Scan(&def, &units)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, unknownItem(item)
	}
	if err != nil {
		return 0, 0, err
	}
	return def, uint32(units), nil
}

// splitStack removes units from a stack into a new stack in the given
// container. The source stack must keep at least one unit; moving an entire
// stack is a MoveStack.
func splitStack(ctx context.Context, dbe executor, item econ.ItemID, units uint32, to econ.ContainerID) (econ.ItemID, error) {
	def, have, err := stackForUpdate(ctx, dbe, item)
	if err != nil {
		return 0, err
	}
	if units == 0 || units >= have {
		return 0, db.ArchiveError{Code: db.ErrGeneralFailure,
			Detail: fmt.Sprintf("cannot split %d units off a stack of %d", units, have)}
	}

	n, err := sqlExec(ctx, dbe, internal.ShrinkStack, int64(units), item)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, unknownItem(item)
	}
	return mintStack(ctx, dbe, def, units, to)
}

func mintStack(ctx context.Context, dbe executor, def econ.ItemDefID, units uint32, to econ.ContainerID) (econ.ItemID, error) {
	var item econ.ItemID
	err := dbe.QueryRowContext(ctx, internal.InsertStack, def, int64(units), to).Scan(&item)
	if err != nil {
		return 0, fmt.Errorf("failed to create stack: %w", err)
	}
	return item, nil
}

func destroyStack(ctx context.Context, dbe executor, item econ.ItemID) error {
	n, err := sqlExec(ctx, dbe, internal.DeleteStack, item)
	if err != nil {
		return err
	}
	if n == 0 {
		return unknownItem(item)
	}
	return nil
}

// MoveStack reassigns a stack to a container. See db.ItemArchiver.
func (a *Archiver) MoveStack(ctx context.Context, item econ.ItemID, to econ.ContainerID) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return moveStack(ctx, a.db, item, to)
}

// SplitStack removes units from a stack into a new stack. See
// db.ItemArchiver.
func (a *Archiver) SplitStack(ctx context.Context, item econ.ItemID, units uint32, to econ.ContainerID) (econ.ItemID, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return splitStack(ctx, a.db, item, units, to)
}

// MintStack creates vendor stock out of nothing. See db.ItemArchiver.
func (a *Archiver) MintStack(ctx context.Context, def econ.ItemDefID, units uint32, to econ.ContainerID) (econ.ItemID, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return mintStack(ctx, a.db, def, units, to)
}

// DestroyStack removes a stack sold into a vendor demand sink. See
// db.ItemArchiver.
func (a *Archiver) DestroyStack(ctx context.Context, item econ.ItemID) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return destroyStack(ctx, a.db, item)
}

// StackUnits reads a stack's unit count. See db.ItemArchiver.
func (a *Archiver) StackUnits(ctx context.Context, item econ.ItemID) (uint32, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	_, units, err := stackForUpdate(ctx, a.db, item)
	return units, err
}
