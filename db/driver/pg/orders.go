// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/db/driver/pg/internal"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/order"
)

func insertOrder(ctx context.Context, dbe executor, ord *order.Order) (econ.OrderID, error) {
	if err := ord.Validate(); err != nil {
		return 0, db.ArchiveError{Code: db.ErrInvalidOrder, Detail: err.Error()}
	}
	var oid econ.OrderID
	err := dbe.QueryRowContext(ctx, internal.InsertOrder,
		ord.MarketID, nullableItemID(ord.ItemID), ord.ItemDef, ord.Submitter,
		ord.SubmittedAt.UTC(), int64(ord.Duration/time.Second), ord.Sell,
		ord.Price, nullableQuantity(ord.Quantity),
		ord.CorpWallet, ord.Vendor, ord.Scope).Scan(&oid)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}
	return oid, nil
}

func selectOrder(ctx context.Context, dbe executor, oid econ.OrderID, lock bool) (*order.Order, error) {
	stmt := internal.SelectOrder
	if lock {
		stmt = internal.SelectOrderForUpdate
	}
	ord, err := scanOrder(dbe.QueryRowContext(ctx, stmt, oid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ArchiveError{Code: db.ErrUnknownOrder,
			Detail: fmt.Sprintf("order %d", oid)}
	}
	if err != nil {
		return nil, err
	}
	return ord, nil
}

func bestOrder(ctx context.Context, dbe executor, stmt string, q *db.CounterQuery) (*order.Order, error) {
	ord, err := scanOrder(dbe.QueryRowContext(ctx, stmt,
		q.Market, q.ItemDef, q.Price, q.Exclude, q.Scope))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ArchiveError{Code: db.ErrNoCounterOrder}
	}
	if err != nil {
		return nil, err
	}
	return ord, nil
}

func setOrderQuantity(ctx context.Context, dbe executor, oid econ.OrderID, remaining uint32) error {
	if remaining == 0 {
		// An exhausted order is deleted, never stored at zero.
		return db.ArchiveError{Code: db.ErrInvalidOrder,
			Detail: "refusing to store zero remaining quantity"}
	}
	n, err := sqlExec(ctx, dbe, internal.UpdateOrderQuantity, int64(remaining), oid)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ArchiveError{Code: db.ErrUnknownOrder,
			Detail: fmt.Sprintf("order %d", oid)}
	}
	return nil
}

func setOrderPrice(ctx context.Context, dbe executor, oid econ.OrderID, price int64) error {
	if price < 0 {
		return db.ArchiveError{Code: db.ErrInvalidOrder, Detail: "negative price"}
	}
	n, err := sqlExec(ctx, dbe, internal.UpdateOrderPrice, price, oid)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ArchiveError{Code: db.ErrUnknownOrder,
			Detail: fmt.Sprintf("order %d", oid)}
	}
	return nil
}

func deleteOrder(ctx context.Context, dbe executor, oid econ.OrderID) (int64, error) {
	return sqlExec(ctx, dbe, internal.DeleteOrder, oid)
}

func selectOrders(ctx context.Context, dbe executor, stmt string, args ...interface{}) ([]*order.Order, error) {
	rows, err := dbe.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ords []*order.Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		ords = append(ords, ord)
	}
	return ords, rows.Err()
}

// InsertOrder persists a new order row, returning the assigned ID. See
// db.OrderArchiver.
func (a *Archiver) InsertOrder(ctx context.Context, ord *order.Order) (econ.OrderID, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return insertOrder(ctx, a.db, ord)
}

// Order retrieves one order. See db.OrderArchiver.
func (a *Archiver) Order(ctx context.Context, oid econ.OrderID) (*order.Order, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return selectOrder(ctx, a.db, oid, false)
}

// SetOrderQuantity persists a partial fill. See db.OrderArchiver.
func (a *Archiver) SetOrderQuantity(ctx context.Context, oid econ.OrderID, remaining uint32) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return setOrderQuantity(ctx, a.db, oid, remaining)
}

// SetOrderPrice persists an owner price modification. See db.OrderArchiver.
func (a *Archiver) SetOrderPrice(ctx context.Context, oid econ.OrderID, price int64) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return setOrderPrice(ctx, a.db, oid, price)
}

// DeleteOrder removes an order row, returning the number of rows affected.
// See db.OrderArchiver.
func (a *Archiver) DeleteOrder(ctx context.Context, oid econ.OrderID) (int64, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return deleteOrder(ctx, a.db, oid)
}

// BestSellOrder returns the lowest-priced eligible sell order at or below the
// query price. See db.OrderArchiver.
func (a *Archiver) BestSellOrder(ctx context.Context, q *db.CounterQuery) (*order.Order, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return bestOrder(ctx, a.db, internal.SelectBestSellOrder, q)
}

// BestBuyOrder returns the highest-priced eligible buy order at or above the
// query price. See db.OrderArchiver.
func (a *Archiver) BestBuyOrder(ctx context.Context, q *db.CounterQuery) (*order.Order, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return bestOrder(ctx, a.db, internal.SelectBestBuyOrder, q)
}

// ExpiredOrders returns finite, non-vendor, non-scoped orders whose age
// exceeds duration*thresholdRatio. See db.OrderArchiver.
func (a *Archiver) ExpiredOrders(ctx context.Context, now time.Time, thresholdRatio float64) ([]*order.Order, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return selectOrders(ctx, a.db, internal.SelectExpiredOrders, thresholdRatio, now.UTC())
}

// MarketOrders lists all resting orders on one market. See db.OrderArchiver.
func (a *Archiver) MarketOrders(ctx context.Context, mkt econ.MarketID) ([]*order.Order, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return selectOrders(ctx, a.db, internal.SelectMarketOrders, mkt)
}

// SubmitterOrders lists all resting orders owned by one entity. See
// db.OrderArchiver.
func (a *Archiver) SubmitterOrders(ctx context.Context, submitter econ.EntityID) ([]*order.Order, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return selectOrders(ctx, a.db, internal.SelectSubmitterOrders, submitter)
}
