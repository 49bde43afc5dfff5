// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package pg implements db.Archivist on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/econ"
)

const defaultQueryTimeout = time.Minute

// log is the package-level logger. It defaults to a disabled logger until
// UseLogger is called.
var log = econ.Disabled

// UseLogger sets the package logger.
func UseLogger(logger econ.Logger) {
	log = logger
}

// Config holds the Archiver's configuration.
type Config struct {
	Host, Port, User, Pass, DBName string
	QueryTimeout                   time.Duration

	// Markets specifies all of the venues the Archiver should prepare.
	Markets []*db.MarketInfo
}

// Archiver implements db.Archivist over a PostgreSQL database.
type Archiver struct {
	ctx          context.Context
	queryTimeout time.Duration
	db           *sql.DB
	dbName       string
}

// NewArchiver constructs a new Archiver, connecting to the PostgreSQL daemon,
// checking the server version, and preparing all tables. Use Close when done
// with the Archiver.
func NewArchiver(ctx context.Context, cfg *Config) (*Archiver, error) {
	sqlDB, err := connect(cfg.Host, cfg.Port, cfg.User, cfg.Pass, cfg.DBName)
	if err != nil {
		return nil, err
	}

	queryTimeout := cfg.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}

	pgVersion, err := retrievePGVersion(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	log.Infof("Connected to %s", pgVersion)

	archiver := &Archiver{
		ctx:          ctx,
		queryTimeout: queryTimeout,
		db:           sqlDB,
		dbName:       cfg.DBName,
	}

	if err = prepareTables(sqlDB, cfg.Markets); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to prepare tables: %w", err)
	}

	return archiver, nil
}

// Close closes the underlying DB connection.
func (a *Archiver) Close() error {
	return a.db.Close()
}

// withTimeout returns a child of the Archiver's context with the configured
// query timeout.
func (a *Archiver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = a.ctx
	}
	return context.WithTimeout(ctx, a.queryTimeout)
}
