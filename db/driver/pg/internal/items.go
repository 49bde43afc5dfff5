// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package internal

const (
	// CreateItemStacksTable creates the custody bookkeeping for physical
	// stacks passing through market ownership. Full item mechanics live in
	// the game's inventory subsystem; this table only records container
	// membership and unit counts so item movement commits atomically with
	// payment.
	CreateItemStacksTable = `CREATE TABLE IF NOT EXISTS %s (
		item_id BIGSERIAL PRIMARY KEY,
		item_def INT4 NOT NULL,
		units INT8 NOT NULL CHECK (units > 0),
		container INT8 NOT NULL
	);`

	// SelectStackForUpdate reads and locks one stack row.
	SelectStackForUpdate = `SELECT item_def, units FROM item_stacks
		WHERE item_id = $1 FOR UPDATE;`

	// MoveStack reassigns a stack to a container.
	MoveStack = `UPDATE item_stacks SET container = $1 WHERE item_id = $2;`

	// ShrinkStack removes units from a stack, failing (zero rows) if the
	// stack would not keep at least one unit.
	ShrinkStack = `UPDATE item_stacks SET units = units - $1
		WHERE item_id = $2 AND units > $1;`

	// InsertStack creates a stack row and returns its ID.
	InsertStack = `INSERT INTO item_stacks (item_def, units, container)
		VALUES ($1, $2, $3) RETURNING item_id;`

	// DeleteStack removes a stack row.
	DeleteStack = `DELETE FROM item_stacks WHERE item_id = $1;`
)
