// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/orbitforge/worldmarket/db/driver/pg/internal"

	_ "github.com/lib/pq" // Start the PostgreSQL sql driver
)

// connect opens a connection to a PostgreSQL database. The caller is
// responsible for calling Close() on the returned db when finished using it.
// The input host may be an IP address for TCP connection, or an absolute path
// to a UNIX domain socket.
func connect(host, port, user, pass, dbName string) (*sql.DB, error) {
	var psqlInfo string
	if pass == "" {
		psqlInfo = fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable",
			host, user, dbName)
	} else {
		psqlInfo = fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			host, user, pass, dbName)
	}

	// Only add port for a TCP connection since UNIX domain sockets
	// (specified by a "/" prefix) do not have a port.
	if !strings.HasPrefix(host, "/") {
		psqlInfo += fmt.Sprintf(" port=%s", port)
	}

	sqlDB, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, err
	}

	// Establish a connection and verify it is alive.
	err = sqlDB.Ping()
	return sqlDB, err
}

// executor is implemented by sql.DB and sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqlExec executes the SQL statement string with any optional arguments, and
// returns the number of rows affected.
func sqlExec(ctx context.Context, dbe executor, stmt string, args ...interface{}) (int64, error) {
	res, err := dbe.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, nil
	}

	var n int64
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error in RowsAffected: %w", err)
	}
	return n, nil
}

// retrievePGVersion retrieves the version of the connected PostgreSQL server.
func retrievePGVersion(sqlDB *sql.DB) (string, error) {
	var version string
	err := sqlDB.QueryRow(internal.RetrievePGVersion).Scan(&version)
	return version, err
}

// tableExists checks if the specified table exists in the public schema.
func tableExists(sqlDB *sql.DB, tableName string) (bool, error) {
	rows, err := sqlDB.Query(`SELECT 1
		FROM pg_tables
		WHERE schemaname = 'public' AND tablename = $1;`, tableName)
	if err != nil {
		return false, err
	}
	defer func() {
		if e := rows.Close(); e != nil {
			log.Errorf("Close of Query failed: %v", e)
		}
	}()
	return rows.Next(), nil
}
