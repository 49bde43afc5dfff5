// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package internal

const (
	// CreateMarketsTable creates the venue configuration table.
	CreateMarketsTable = `CREATE TABLE IF NOT EXISTS %s (
		market_id INT4 PRIMARY KEY,
		name TEXT NOT NULL,
		base_id INT4 NOT NULL,
		owner_corp INT8 NOT NULL DEFAULT 0,
		player_owned BOOLEAN NOT NULL,
		sandbox BOOLEAN NOT NULL,
		tax_rate FLOAT8 NOT NULL,
		public_container INT8 NOT NULL,
		hangar_container INT8 NOT NULL
	);`

	// UpsertMarket registers a configured market, preserving any persisted
	// tax override on conflict.
	UpsertMarket = `INSERT INTO markets (market_id, name, base_id, owner_corp,
			player_owned, sandbox, tax_rate, public_container, hangar_container)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (market_id) DO UPDATE SET
			name = EXCLUDED.name,
			base_id = EXCLUDED.base_id,
			owner_corp = EXCLUDED.owner_corp,
			player_owned = EXCLUDED.player_owned,
			sandbox = EXCLUDED.sandbox,
			public_container = EXCLUDED.public_container,
			hangar_container = EXCLUDED.hangar_container;`

	// SelectMarkets lists all venues.
	SelectMarkets = `SELECT market_id, name, base_id, owner_corp,
			player_owned, sandbox, tax_rate, public_container, hangar_container
		FROM markets ORDER BY market_id;`

	// UpdateMarketTax persists a tax override.
	UpdateMarketTax = `UPDATE markets SET tax_rate = $1 WHERE market_id = $2;`

	// CreateTaxLogTable creates the append-only tax audit log.
	CreateTaxLogTable = `CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		owner_id INT8 NOT NULL,
		character_id INT8 NOT NULL,
		base_id INT4 NOT NULL,
		change_from FLOAT8 NOT NULL,
		change_to FLOAT8 NOT NULL,
		event_time TIMESTAMPTZ NOT NULL
	);`

	// InsertTaxChange appends a tax audit record.
	InsertTaxChange = `INSERT INTO tax_log (owner_id, character_id, base_id,
			change_from, change_to, event_time)
		VALUES ($1, $2, $3, $4, $5, $6);`

	// SelectTaxChanges lists a base's tax audit records, newest first.
	SelectTaxChanges = `SELECT owner_id, character_id, base_id,
			change_from, change_to, event_time
		FROM tax_log WHERE base_id = $1
		ORDER BY event_time DESC, id DESC
		LIMIT $2;`
)
