// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package pg

import (
	"database/sql"
	"fmt"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/db/driver/pg/internal"
)

type tableStmt struct {
	name string
	stmt string
}

var createTableStatements = []tableStmt{
	{"markets", internal.CreateMarketsTable},
	{"orders", internal.CreateOrdersTable},
	{"price_samples", internal.CreatePriceSamplesTable},
	{"tax_log", internal.CreateTaxLogTable},
	{"wallets", internal.CreateWalletsTable},
	{"treasury", internal.CreateTreasuryTable},
	{"treasury_journal", internal.CreateTreasuryJournalTable},
	{"item_stacks", internal.CreateItemStacksTable},
	{"participants", internal.CreateParticipantsTable},
}

// createTable creates a table with the given name using the provided CREATE
// TABLE statement, which must contain a single %s specifier for the table
// name. It returns whether the table was created (did not already exist).
func createTable(sqlDB *sql.DB, createCommand, tableName string) (bool, error) {
	exists, err := tableExists(sqlDB, tableName)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	_, err = sqlDB.Exec(fmt.Sprintf(createCommand, tableName))
	if err != nil {
		return false, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}
	log.Tracef("Created table %s", tableName)
	return true, nil
}

// prepareTables ensures that all tables required by the market config are
// ready, the orders lookup index exists, the treasury row is initialized, and
// all configured venues are registered.
func prepareTables(sqlDB *sql.DB, markets []*db.MarketInfo) error {
	for _, pair := range createTableStatements {
		created, err := createTable(sqlDB, pair.stmt, pair.name)
		if err != nil {
			return err
		}
		if created {
			log.Debugf("Created new %s table.", pair.name)
		}
	}

	_, err := sqlDB.Exec(fmt.Sprintf(internal.CreateOrdersLookupIndex, "orders"))
	if err != nil {
		return fmt.Errorf("failed to index orders: %w", err)
	}

	if _, err = sqlDB.Exec(internal.InitTreasuryRow); err != nil {
		return fmt.Errorf("failed to initialize treasury: %w", err)
	}

	for _, mkt := range markets {
		_, err = sqlDB.Exec(internal.UpsertMarket, mkt.ID, mkt.Name, mkt.BaseID,
			mkt.OwnerCorp, mkt.PlayerOwned, mkt.Sandbox, mkt.TaxRate,
			mkt.PublicContainer, mkt.HangarContainer)
		if err != nil {
			return fmt.Errorf("failed to register market %q: %w", mkt.Name, err)
		}
	}

	return nil
}
