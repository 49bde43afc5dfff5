// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/db/driver/pg/internal"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/order"
)

// pgTx implements db.Tx over one sql.Tx. Post-commit hooks are collected
// during the transaction and run by RunTx only after a successful commit, so
// no network I/O (client notifications) ever happens inside the transaction.
type pgTx struct {
	ctx   context.Context
	tx    txExecutor
	hooks []func()
}

// txExecutor is the subset of sql.Tx used by pgTx.
type txExecutor interface {
	executor
	Commit() error
	Rollback() error
}

// RunTx executes f inside one transaction. If f returns an error or panics,
// the transaction rolls back entirely; no partial settlement state is ever
// observable. Hooks registered via OnCommit run in order after commit.
func (a *Archiver) RunTx(ctx context.Context, f func(db.Tx) error) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	sqlTx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	ptx := &pgTx{ctx: ctx, tx: sqlTx}
	committed := false
	defer func() {
		if !committed {
			if errR := sqlTx.Rollback(); errR != nil {
				log.Errorf("Rollback failed: %v", errR)
			}
		}
	}()

	if err = f(ptx); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return econ.NewError(econ.ErrRetryable, err.Error())
	}
	committed = true

	for _, hook := range ptx.hooks {
		hook()
	}
	return nil
}

// OnCommit registers a hook to run after the transaction commits.
func (t *pgTx) OnCommit(f func()) {
	t.hooks = append(t.hooks, f)
}

// OrderArchiver

func (t *pgTx) InsertOrder(_ context.Context, ord *order.Order) (econ.OrderID, error) {
	return insertOrder(t.ctx, t.tx, ord)
}

// Order retrieves and row-locks one order for the remainder of the
// transaction.
func (t *pgTx) Order(_ context.Context, oid econ.OrderID) (*order.Order, error) {
	return selectOrder(t.ctx, t.tx, oid, true)
}

func (t *pgTx) SetOrderQuantity(_ context.Context, oid econ.OrderID, remaining uint32) error {
	return setOrderQuantity(t.ctx, t.tx, oid, remaining)
}

func (t *pgTx) SetOrderPrice(_ context.Context, oid econ.OrderID, price int64) error {
	return setOrderPrice(t.ctx, t.tx, oid, price)
}

func (t *pgTx) DeleteOrder(_ context.Context, oid econ.OrderID) (int64, error) {
	return deleteOrder(t.ctx, t.tx, oid)
}

func (t *pgTx) BestSellOrder(_ context.Context, q *db.CounterQuery) (*order.Order, error) {
	return bestOrder(t.ctx, t.tx, internal.SelectBestSellOrder, q)
}

func (t *pgTx) BestBuyOrder(_ context.Context, q *db.CounterQuery) (*order.Order, error) {
	return bestOrder(t.ctx, t.tx, internal.SelectBestBuyOrder, q)
}

func (t *pgTx) ExpiredOrders(_ context.Context, now time.Time, thresholdRatio float64) ([]*order.Order, error) {
	return selectOrders(t.ctx, t.tx, internal.SelectExpiredOrders, thresholdRatio, now.UTC())
}

func (t *pgTx) MarketOrders(_ context.Context, mkt econ.MarketID) ([]*order.Order, error) {
	return selectOrders(t.ctx, t.tx, internal.SelectMarketOrders, mkt)
}

func (t *pgTx) SubmitterOrders(_ context.Context, submitter econ.EntityID) ([]*order.Order, error) {
	return selectOrders(t.ctx, t.tx, internal.SelectSubmitterOrders, submitter)
}

// PriceArchiver

func (t *pgTx) AppendSample(_ context.Context, s *db.PriceSample) error {
	return appendSample(t.ctx, t.tx, s)
}

func (t *pgTx) WindowSum(_ context.Context, mkt econ.MarketID, def econ.ItemDefID, since time.Time) (int64, int64, error) {
	return windowSum(t.ctx, t.tx, mkt, def, since)
}

// TaxArchiver

func (t *pgTx) AppendTaxChange(_ context.Context, ch *db.TaxChange) error {
	return appendTaxChange(t.ctx, t.tx, ch)
}

func (t *pgTx) TaxChanges(_ context.Context, base econ.BaseID, limit int) ([]*db.TaxChange, error) {
	return selectTaxChanges(t.ctx, t.tx, base, limit)
}

// MarketArchiver

func (t *pgTx) Markets(_ context.Context) ([]*db.MarketInfo, error) {
	return selectMarkets(t.ctx, t.tx)
}

func (t *pgTx) SetMarketTax(_ context.Context, mkt econ.MarketID, rate float64) error {
	return setMarketTax(t.ctx, t.tx, mkt, rate)
}

// BankArchiver

func (t *pgTx) WalletBalance(_ context.Context, owner econ.EntityID, corp bool) (int64, error) {
	return walletBalance(t.ctx, t.tx, owner, corp)
}

func (t *pgTx) AdjustWallet(_ context.Context, owner econ.EntityID, corp bool, delta int64, kind econ.EntryKind) error {
	return adjustWallet(t.ctx, t.tx, owner, corp, delta, kind)
}

func (t *pgTx) CreditCentralBank(_ context.Context, amount int64, kind econ.EntryKind) error {
	return adjustTreasury(t.ctx, t.tx, amount, kind)
}

func (t *pgTx) DebitCentralBank(_ context.Context, amount int64, kind econ.EntryKind) error {
	return adjustTreasury(t.ctx, t.tx, -amount, kind)
}

func (t *pgTx) CentralBankBalance(_ context.Context) (int64, error) {
	return treasuryBalance(t.ctx, t.tx)
}

// ItemArchiver

func (t *pgTx) MoveStack(_ context.Context, item econ.ItemID, to econ.ContainerID) error {
	return moveStack(t.ctx, t.tx, item, to)
}

func (t *pgTx) SplitStack(_ context.Context, item econ.ItemID, units uint32, to econ.ContainerID) (econ.ItemID, error) {
	return splitStack(t.ctx, t.tx, item, units, to)
}

func (t *pgTx) MintStack(_ context.Context, def econ.ItemDefID, units uint32, to econ.ContainerID) (econ.ItemID, error) {
	return mintStack(t.ctx, t.tx, def, units, to)
}

func (t *pgTx) DestroyStack(_ context.Context, item econ.ItemID) error {
	return destroyStack(t.ctx, t.tx, item)
}

func (t *pgTx) StackUnits(_ context.Context, item econ.ItemID) (uint32, error) {
	_, units, err := stackForUpdate(t.ctx, t.tx, item)
	return units, err
}
