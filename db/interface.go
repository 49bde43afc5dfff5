// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package db defines the storage interfaces consumed by the market engine:
// resting-order persistence, the append-only price ledger and tax audit log,
// venue configuration, wallet/central-bank balances, and custody bookkeeping
// for item stacks, all behind a transactional unit of work with post-commit
// hooks.
package db

import (
	"context"
	"time"

	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/order"
)

// CounterQuery selects the best resting counter-order for an instant fill.
type CounterQuery struct {
	Market  econ.MarketID
	ItemDef econ.ItemDefID
	// Price is the limit: the maximum bid when searching sell orders, the
	// minimum ask when searching buy orders.
	Price int64
	// Exclude filters out the querying submitter's own orders.
	Exclude econ.EntityID
	// Scope is the caller's corporation scope. An order is eligible if its
	// scope is public or equals this value. Zero requests public only.
	Scope econ.CorporationID
}

// OrderArchiver is the persistence and query interface for resting orders.
type OrderArchiver interface {
	// InsertOrder persists a new order row and returns its assigned ID.
	InsertOrder(ctx context.Context, ord *order.Order) (econ.OrderID, error)
	// Order retrieves one order. Inside a transaction the row is locked
	// for update. Returns ArchiveError{Code: ErrUnknownOrder} if no row
	// exists.
	Order(ctx context.Context, oid econ.OrderID) (*order.Order, error)
	// SetOrderQuantity persists a partial fill. Remaining quantity only
	// ever decreases.
	SetOrderQuantity(ctx context.Context, oid econ.OrderID, remaining uint32) error
	// SetOrderPrice persists an owner price modification.
	SetOrderPrice(ctx context.Context, oid econ.OrderID, price int64) error
	// DeleteOrder removes an order row, returning the number of rows
	// affected. Zero rows is not an error; a cancel/expiry race resolves
	// to a benign no-op for the losing transaction.
	DeleteOrder(ctx context.Context, oid econ.OrderID) (int64, error)
	// BestSellOrder returns the lowest-priced eligible sell order at or
	// below the query price. Ties break FIFO by submission time, then ID.
	// Returns ArchiveError{Code: ErrNoCounterOrder} when nothing matches.
	BestSellOrder(ctx context.Context, q *CounterQuery) (*order.Order, error)
	// BestBuyOrder mirrors BestSellOrder for the highest bid at or above
	// the query price.
	BestBuyOrder(ctx context.Context, q *CounterQuery) (*order.Order, error)
	// ExpiredOrders returns finite, non-vendor, non-scoped orders whose
	// age exceeds duration*thresholdRatio at the given time.
	ExpiredOrders(ctx context.Context, now time.Time, thresholdRatio float64) ([]*order.Order, error)
	// MarketOrders lists all resting orders on one market.
	MarketOrders(ctx context.Context, mkt econ.MarketID) ([]*order.Order, error)
	// SubmitterOrders lists all resting orders owned by one entity.
	SubmitterOrders(ctx context.Context, submitter econ.EntityID) ([]*order.Order, error)
}

// PriceArchiver is the append-only trade-sample ledger, bucketed per
// (market, item) to PriceBucket alignment.
type PriceArchiver interface {
	// AppendSample folds a trade sample into its bucket row.
	AppendSample(ctx context.Context, s *PriceSample) error
	// WindowSum sums total price and quantity over all buckets at or
	// after since.
	WindowSum(ctx context.Context, mkt econ.MarketID, def econ.ItemDefID, since time.Time) (totalPrice, quantity int64, err error)
}

// TaxArchiver is the append-only tax-change audit log.
type TaxArchiver interface {
	AppendTaxChange(ctx context.Context, ch *TaxChange) error
	// TaxChanges lists the most recent changes for a base, newest first.
	TaxChanges(ctx context.Context, base econ.BaseID, limit int) ([]*TaxChange, error)
}

// MarketArchiver stores venue configuration.
type MarketArchiver interface {
	Markets(ctx context.Context) ([]*MarketInfo, error)
	SetMarketTax(ctx context.Context, mkt econ.MarketID, rate float64) error
}

// BankArchiver adjusts wallet and central-bank balances. The backing store's
// row-level locking is the mutual-exclusion mechanism for read-modify-write
// on balances; no in-process locks are held.
type BankArchiver interface {
	// WalletBalance reads the balance of an entity's personal or corp
	// wallet.
	WalletBalance(ctx context.Context, owner econ.EntityID, corp bool) (int64, error)
	// AdjustWallet applies delta to a wallet. Fails with
	// ArchiveError{Code: ErrInsufficientBalance} if the resulting balance
	// would be negative.
	AdjustWallet(ctx context.Context, owner econ.EntityID, corp bool, delta int64, kind econ.EntryKind) error
	// CreditCentralBank adds to the world treasury and journals the entry.
	CreditCentralBank(ctx context.Context, amount int64, kind econ.EntryKind) error
	// DebitCentralBank removes from the world treasury. The treasury is a
	// sink/faucet and may go negative.
	DebitCentralBank(ctx context.Context, amount int64, kind econ.EntryKind) error
	// CentralBankBalance reads the treasury balance.
	CentralBankBalance(ctx context.Context) (int64, error)
}

// ItemArchiver is the custody bookkeeping for physical stacks passing through
// market ownership. Full item mechanics live in the game's inventory
// subsystem; the engine only records container membership and unit counts so
// that item movement commits atomically with payment.
type ItemArchiver interface {
	// MoveStack reassigns a stack to a container.
	MoveStack(ctx context.Context, item econ.ItemID, to econ.ContainerID) error
	// SplitStack removes units from a stack into a new stack in the given
	// container, returning the new stack's ID.
	SplitStack(ctx context.Context, item econ.ItemID, units uint32, to econ.ContainerID) (econ.ItemID, error)
	// MintStack creates vendor stock out of nothing.
	MintStack(ctx context.Context, def econ.ItemDefID, units uint32, to econ.ContainerID) (econ.ItemID, error)
	// DestroyStack removes a stack sold into a vendor demand sink.
	DestroyStack(ctx context.Context, item econ.ItemID) error
	// StackUnits reads a stack's unit count.
	StackUnits(ctx context.Context, item econ.ItemID) (uint32, error)
}

// Tx is one storage transaction. All mutations made through it commit
// atomically or roll back entirely; no partial settlement state is ever
// observable. Hooks registered with OnCommit run only after a successful
// commit, in registration order. No network I/O may occur inside the
// transaction except those deferred hooks.
type Tx interface {
	OrderArchiver
	PriceArchiver
	TaxArchiver
	MarketArchiver
	BankArchiver
	ItemArchiver

	// OnCommit registers a hook to run after the transaction commits.
	OnCommit(func())
}

// Archivist is the complete storage backend. The non-transactional methods
// operate on the shared connection and are for reads outside settlement.
type Archivist interface {
	OrderArchiver
	PriceArchiver
	TaxArchiver
	MarketArchiver
	BankArchiver
	ItemArchiver

	// RunTx executes f inside one transaction. If f returns an error the
	// transaction rolls back and the error is returned. Post-commit hooks
	// registered by f run after a successful commit.
	RunTx(ctx context.Context, f func(Tx) error) error

	// Close shuts down the backend.
	Close() error
}
