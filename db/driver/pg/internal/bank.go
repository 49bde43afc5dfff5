// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package internal

const (
	// CreateWalletsTable creates the wallet balances table. One row per
	// (owner, corp-flag). Balances never go negative; the CHECK plus the
	// guarded UPDATE make row-level locking the mutual-exclusion mechanism
	// for balance read-modify-write.
	CreateWalletsTable = `CREATE TABLE IF NOT EXISTS %s (
		owner INT8 NOT NULL,
		corp BOOLEAN NOT NULL,
		balance INT8 NOT NULL CHECK (balance >= 0),
		PRIMARY KEY (owner, corp)
	);`

	// SelectWalletBalance reads one wallet's balance.
	SelectWalletBalance = `SELECT balance FROM wallets WHERE owner = $1 AND corp = $2;`

	// AdjustWalletBalance applies a delta only when the result stays
	// non-negative. Zero rows affected means the wallet is missing or the
	// debit would overdraw it.
	AdjustWalletBalance = `UPDATE wallets SET balance = balance + $3
		WHERE owner = $1 AND corp = $2 AND balance + $3 >= 0;`

	// CreateTreasuryTable creates the single-row world treasury. The
	// treasury is a sink/faucet and may go negative.
	CreateTreasuryTable = `CREATE TABLE IF NOT EXISTS %s (
		id INT2 PRIMARY KEY CHECK (id = 1),
		balance INT8 NOT NULL DEFAULT 0
	);`

	// InitTreasuryRow ensures the treasury row exists.
	InitTreasuryRow = `INSERT INTO treasury (id, balance) VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;`

	// AdjustTreasuryBalance applies a delta to the world treasury.
	AdjustTreasuryBalance = `UPDATE treasury SET balance = balance + $1 WHERE id = 1;`

	// SelectTreasuryBalance reads the treasury balance.
	SelectTreasuryBalance = `SELECT balance FROM treasury WHERE id = 1;`

	// CreateTreasuryJournalTable creates the append-only treasury journal.
	CreateTreasuryJournalTable = `CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		kind INT2 NOT NULL,
		amount INT8 NOT NULL,
		entry_time TIMESTAMPTZ NOT NULL DEFAULT now()
	);`

	// InsertTreasuryJournal appends a treasury journal entry.
	InsertTreasuryJournal = `INSERT INTO treasury_journal (kind, amount) VALUES ($1, $2);`
)
