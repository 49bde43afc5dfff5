// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package internal contains all of the SQL statement strings used by the pg
// driver.
package internal

const (
	// RetrievePGVersion retrieves the PostgreSQL version.
	RetrievePGVersion = `SELECT version();`

	// CreateParticipantsTable creates the engine's read projection of the
	// game's entity records: corporation membership, role bits, personal
	// tax bonus, and per-base delivery container. The entity subsystem
	// owns the source of truth and refreshes this projection.
	CreateParticipantsTable = `CREATE TABLE IF NOT EXISTS %s (
		entity_id INT8 PRIMARY KEY,
		corp INT8 NOT NULL DEFAULT 0,
		roles INT8 NOT NULL DEFAULT 0,
		tax_bonus FLOAT8 NOT NULL DEFAULT 0,
		home_base INT4 NOT NULL DEFAULT 0,
		delivery_container INT8 NOT NULL DEFAULT 0
	);`

	// SelectParticipant reads one entity projection row.
	SelectParticipant = `SELECT entity_id, corp, roles, tax_bonus,
			home_base, delivery_container
		FROM participants WHERE entity_id = $1;`
)
