// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package market implements the settlement aggregate for one venue: order
// creation with escrow, instant fulfillment with partial fills, cancellation,
// payout with taxation into the central bank, and owner tax control. All
// money and item movement happens inside a single store transaction per
// operation; client notifications run only after commit.
package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/order"
	"github.com/orbitforge/worldmarket/price"
)

// Notification event names sent via the wired econ.Notifier.
const (
	NoteOrderCreated   = "marketOrderCreated"
	NoteOrderFilled    = "marketOrderFilled"
	NoteOrderCancelled = "marketOrderCancelled"
	NoteOrderExpired   = "marketOrderExpired"
	NoteTaxChanged     = "marketTaxChanged"
)

// Config is the wiring for one Market.
type Config struct {
	Info   *db.MarketInfo
	Store  db.Archivist
	Prices *price.Collector
	People econ.Directory
	// Notifier may be nil; notifications are then dropped.
	Notifier econ.Notifier
}

// Market is the settlement aggregate for one venue. All methods are safe for
// concurrent use; cross-order consistency comes from the store's row locking,
// not from in-process locks.
type Market struct {
	info   *db.MarketInfo
	store  db.Archivist
	prices *price.Collector
	people econ.Directory
	notify econ.Notifier
	now    func() time.Time

	taxMtx  sync.RWMutex
	taxRate float64
}

// New constructs a Market from its wiring.
func New(cfg *Config) (*Market, error) {
	if cfg.Info == nil || cfg.Store == nil || cfg.Prices == nil || cfg.People == nil {
		return nil, fmt.Errorf("incomplete market configuration")
	}
	return &Market{
		info:    cfg.Info,
		store:   cfg.Store,
		prices:  cfg.Prices,
		people:  cfg.People,
		notify:  cfg.Notifier,
		now:     time.Now,
		taxRate: econ.ClampRate(cfg.Info.TaxRate),
	}, nil
}

// ID is the market's venue identifier.
func (m *Market) ID() econ.MarketID {
	return m.info.ID
}

// Info returns the market's venue configuration.
func (m *Market) Info() *db.MarketInfo {
	return m.info
}

// TaxRate is the market's current sales tax rate.
func (m *Market) TaxRate() float64 {
	m.taxMtx.RLock()
	defer m.taxMtx.RUnlock()
	return m.taxRate
}

func (m *Market) send(char econ.EntityID, event string, payload any) {
	if m.notify == nil {
		return
	}
	m.notify.SendToCharacter(char, event, payload)
}

// orderNote is the payload for order lifecycle notifications.
type orderNote struct {
	OrderID   econ.OrderID   `json:"orderId"`
	MarketID  econ.MarketID  `json:"marketId"`
	ItemDef   econ.ItemDefID `json:"itemDef"`
	Sell      bool           `json:"sell"`
	Price     int64          `json:"price"`
	Quantity  uint32         `json:"quantity"`
	Delivered uint32         `json:"delivered,omitempty"`
}

func noteFor(o *order.Order) *orderNote {
	return &orderNote{
		OrderID:  o.ID,
		MarketID: o.MarketID,
		ItemDef:  o.ItemDef,
		Sell:     o.Sell,
		Price:    o.Price,
		Quantity: o.Quantity.Units(),
	}
}

// SellOrderCmd creates a resting sell order backed by a physical stack.
type SellOrderCmd struct {
	Seller econ.EntityID
	// Item is the stack to offer. The whole stack is offered; custody moves
	// to the market hangar until the order fills or is cancelled.
	Item     econ.ItemID
	ItemDef  econ.ItemDefID
	Price    int64
	Quantity uint32
	Duration time.Duration
	// CorpWallet routes sale proceeds to the seller's corporation wallet.
	CorpWallet bool
	// Scope restricts visibility to one corporation. Zero is public.
	Scope econ.CorporationID
}

// CreateSellOrder persists a resting sell order, moving the offered stack
// into the market's custody hangar in the same transaction.
func (m *Market) CreateSellOrder(ctx context.Context, cmd *SellOrderCmd) (*order.Order, error) {
	ord := &order.Order{
		MarketID:    m.info.ID,
		ItemID:      cmd.Item,
		ItemDef:     cmd.ItemDef,
		Submitter:   cmd.Seller,
		SubmittedAt: m.now().UTC(),
		Duration:    cmd.Duration,
		Price:       cmd.Price,
		Quantity:    econ.Finite(cmd.Quantity),
		Sell:        true,
		CorpWallet:  cmd.CorpWallet,
		Scope:       cmd.Scope,
	}
	if err := ord.Validate(); err != nil {
		return nil, err
	}

	err := m.store.RunTx(ctx, func(tx db.Tx) error {
		units, err := tx.StackUnits(ctx, cmd.Item)
		if err != nil {
			return err
		}
		if units != cmd.Quantity {
			return econ.NewError(econ.ErrInvalidQuantity,
				fmt.Sprintf("stack %d holds %d units, order offers %d",
					cmd.Item, units, cmd.Quantity))
		}
		if err := tx.MoveStack(ctx, cmd.Item, m.info.HangarContainer); err != nil {
			return err
		}
		ord.ID, err = tx.InsertOrder(ctx, ord)
		if err != nil {
			return err
		}
		tx.OnCommit(func() {
			m.send(cmd.Seller, NoteOrderCreated, noteFor(ord))
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("Market %d: sell order %d created by %d: %d x item %d at %d",
		m.info.ID, ord.ID, cmd.Seller, cmd.Quantity, cmd.ItemDef, cmd.Price)
	return ord, nil
}

// BuyOrderCmd creates a resting buy order backed by an escrow deposit.
type BuyOrderCmd struct {
	Buyer    econ.EntityID
	ItemDef  econ.ItemDefID
	Price    int64
	Quantity uint32
	Duration time.Duration
	// CorpWallet funds the escrow from the buyer's corporation wallet.
	CorpWallet bool
	Scope      econ.CorporationID
}

// CreateBuyOrder persists a resting buy order. The full deposit, price times
// quantity, is debited from the funding wallet at creation time and parked in
// the central bank until the order fills or is cancelled, so a resting bid is
// always good for its full remaining size.
func (m *Market) CreateBuyOrder(ctx context.Context, cmd *BuyOrderCmd) (*order.Order, error) {
	ord := &order.Order{
		MarketID:    m.info.ID,
		ItemDef:     cmd.ItemDef,
		Submitter:   cmd.Buyer,
		SubmittedAt: m.now().UTC(),
		Duration:    cmd.Duration,
		Price:       cmd.Price,
		Quantity:    econ.Finite(cmd.Quantity),
		CorpWallet:  cmd.CorpWallet,
		Scope:       cmd.Scope,
	}
	if err := ord.Validate(); err != nil {
		return nil, err
	}

	err := m.store.RunTx(ctx, func(tx db.Tx) error {
		var err error
		if err = m.holdEscrow(ctx, tx, ord); err != nil {
			return err
		}
		ord.ID, err = tx.InsertOrder(ctx, ord)
		if err != nil {
			return err
		}
		tx.OnCommit(func() {
			m.send(cmd.Buyer, NoteOrderCreated, noteFor(ord))
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("Market %d: buy order %d created by %d: %d x item %d at %d",
		m.info.ID, ord.ID, cmd.Buyer, cmd.Quantity, cmd.ItemDef, cmd.Price)
	return ord, nil
}

// holdEscrow debits a buy order's full deposit from its funding wallet and
// parks it in the central bank. Sandbox markets park nothing; the debit alone
// keeps the bid funded.
func (m *Market) holdEscrow(ctx context.Context, tx db.Tx, ord *order.Order) error {
	deposit := ord.Escrow()
	if deposit == 0 {
		return nil
	}
	err := tx.AdjustWallet(ctx, ord.Submitter, ord.CorpWallet, -deposit, econ.EntryMarketEscrow)
	if err != nil {
		return err
	}
	if m.info.Sandbox {
		return nil
	}
	return tx.CreditCentralBank(ctx, deposit, econ.EntryMarketEscrow)
}

// releaseEscrow reverses holdEscrow for amount credits, refunding the funding
// wallet.
func (m *Market) releaseEscrow(ctx context.Context, tx db.Tx, ord *order.Order, amount int64, kind econ.EntryKind) error {
	if amount == 0 {
		return nil
	}
	err := tx.AdjustWallet(ctx, ord.Submitter, ord.CorpWallet, amount, kind)
	if err != nil {
		return err
	}
	if m.info.Sandbox {
		return nil
	}
	return tx.DebitCentralBank(ctx, amount, kind)
}

// CancelOrder removes a resting order, returning its escrowed deposit or
// custodied stack to the submitter. Player cancels require ownership and an
// elapsed cancel-protection window; force bypasses both and is reserved for
// the expiry sweeper. A concurrent fill racing the cancel is benign: whoever
// deletes the order row first wins, and the loser sees a no-op.
func (m *Market) CancelOrder(ctx context.Context, oid econ.OrderID, by econ.EntityID, force bool) error {
	return m.store.RunTx(ctx, func(tx db.Tx) error {
		ord, err := tx.Order(ctx, oid)
		if err != nil {
			if db.IsErrOrderUnknown(err) && force {
				return nil
			}
			return err
		}
		if ord.Vendor {
			return econ.ErrVendorOrder
		}
		if !force {
			if ord.Submitter != by {
				return econ.ErrUnauthorized
			}
			if !ord.CanModify(m.now()) {
				return econ.ErrCancelTooEarly
			}
		}

		// Delete first. Zero rows means a fill beat us to it.
		n, err := tx.DeleteOrder(ctx, oid)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		if ord.Sell {
			err = tx.MoveStack(ctx, ord.ItemID, m.info.PublicContainer)
		} else {
			err = m.releaseEscrow(ctx, tx, ord, ord.Escrow(), econ.EntryMarketEscrowRefund)
		}
		if err != nil {
			return err
		}

		event := NoteOrderCancelled
		if force {
			event = NoteOrderExpired
		}
		tx.OnCommit(func() {
			m.send(ord.Submitter, event, noteFor(ord))
		})
		return nil
	})
}

// SetTax records and applies a new sales tax rate for a player-owned market.
// The caller must hold a treasury role (CEO, deputy CEO, or accountant) in
// the owning corporation. The change is appended to the base's tax audit log
// in the same transaction, before the rate is applied.
func (m *Market) SetTax(ctx context.Context, char econ.EntityID, rate float64) error {
	if !m.info.PlayerOwned {
		return econ.NewError(econ.ErrUnauthorized, "market tax is not player-controlled")
	}
	p, err := m.people.Participant(ctx, char)
	if err != nil {
		return err
	}
	if !p.HasRole(m.info.OwnerCorp, econ.TaxRoles) {
		return econ.ErrUnauthorized
	}
	return m.setTax(ctx, char, rate)
}

// OverrideTax applies an operator-issued tax change, bypassing the ownership
// and role checks. The change is still audit-logged, attributed to no
// character.
func (m *Market) OverrideTax(ctx context.Context, rate float64) error {
	return m.setTax(ctx, 0, rate)
}

func (m *Market) setTax(ctx context.Context, char econ.EntityID, rate float64) error {
	rate = econ.ClampRate(rate)

	return m.store.RunTx(ctx, func(tx db.Tx) error {
		err := tx.AppendTaxChange(ctx, &db.TaxChange{
			OwnerID:     m.info.OwnerCorp,
			CharacterID: char,
			BaseID:      m.info.BaseID,
			ChangeFrom:  m.TaxRate(),
			ChangeTo:    rate,
			EventTime:   m.now().UTC(),
		})
		if err != nil {
			return err
		}
		if err = tx.SetMarketTax(ctx, m.info.ID, rate); err != nil {
			return err
		}
		tx.OnCommit(func() {
			m.taxMtx.Lock()
			m.taxRate = rate
			m.taxMtx.Unlock()
			m.send(char, NoteTaxChanged, &struct {
				MarketID econ.MarketID `json:"marketId"`
				TaxRate  float64       `json:"taxRate"`
			}{m.info.ID, rate})
		})
		return nil
	})
}
