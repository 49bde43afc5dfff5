// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package market

import (
	"context"
	"fmt"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/order"
)

// Fill reports the outcome of one fulfillment.
type Fill struct {
	// Delivered is the number of units that changed hands.
	Delivered uint32
	// UnitPrice is the per-unit settlement price, always the resting sell
	// side's ask.
	UnitPrice int64
	// Gross is the total settled value, UnitPrice times Delivered.
	Gross int64
	// Resting is the new resting order created for any unfilled remainder,
	// or nil.
	Resting *order.Order
}

// Payout describes a seller-side settlement leg for PayOutToSeller.
type Payout struct {
	Seller     econ.EntityID
	CorpWallet bool
	ItemDef    econ.ItemDefID
	// Price is the per-unit settlement price.
	Price    int64
	Quantity uint32
	Kind     econ.EntryKind
	// AffectsAverage records the trade in the market's price feed.
	AffectsAverage bool
	// ForCorporation marks proceeds earned on a corporation's own behalf.
	// Such payouts are exempt from sales tax.
	ForCorporation bool
}

// PayOutToSeller credits a seller their net proceeds for a settled trade:
// gross minus sales tax at the market's rate reduced by the seller's personal
// tax bonus. The tax goes to the central bank in the same transaction, so
// gross splits exactly between seller and treasury. Sandbox markets levy no
// tax and touch no treasury. Returns the net amount credited.
func (m *Market) PayOutToSeller(ctx context.Context, tx db.Tx, po *Payout) (int64, error) {
	gross := econ.Gross(po.Price, po.Quantity)

	var tax int64
	if !po.ForCorporation && !m.info.Sandbox {
		p, err := m.people.Participant(ctx, po.Seller)
		if err != nil {
			return 0, err
		}
		rate := econ.ClampRate(m.TaxRate() - p.TaxBonus())
		tax = econ.TaxDue(gross, rate)
	}
	net := gross - tax

	err := tx.AdjustWallet(ctx, po.Seller, po.CorpWallet, net, po.Kind)
	if err != nil {
		return 0, err
	}
	if tax > 0 {
		if err = tx.CreditCentralBank(ctx, tax, econ.EntryMarketTax); err != nil {
			return 0, err
		}
	}
	if po.AffectsAverage {
		err = m.prices.RecordTrade(ctx, tx, po.ItemDef, gross, po.Quantity)
		if err != nil {
			return 0, err
		}
	}
	return net, nil
}

// BuyFulfillCmd is a buyer taking units from a resting sell order.
type BuyFulfillCmd struct {
	Buyer econ.EntityID
	// CorpWallet funds the purchase, and any remainder escrow, from the
	// buyer's corporation wallet.
	CorpWallet bool
	// OrderID is the resting sell order to take.
	OrderID  econ.OrderID
	Quantity uint32
	// Bid is the buyer's per-unit limit. It must cover the resting ask, and
	// prices any resting remainder bid.
	Bid int64
	// Duration applies to a resting remainder bid.
	Duration time.Duration
	// Destination receives the purchased stack. Zero selects the buyer's
	// delivery hangar at the market's base.
	Destination econ.ContainerID
	Scope       econ.CorporationID
}

// FulfillBuyOrderInstantly settles a buyer against a resting sell order at
// the resting ask. A sell order larger than the request is decremented in
// place; one smaller is consumed and the unfilled remainder becomes a resting
// buy order at the buyer's bid, escrowed like any other. Infinite vendor
// orders mint the purchased stack and route the payment to the central bank.
func (m *Market) FulfillBuyOrderInstantly(ctx context.Context, cmd *BuyFulfillCmd) (*Fill, error) {
	if cmd.Quantity == 0 {
		return nil, econ.ErrInvalidQuantity
	}

	var fill Fill
	err := m.store.RunTx(ctx, func(tx db.Tx) error {
		so, err := tx.Order(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if !so.Sell || so.MarketID != m.info.ID {
			return econ.NewError(econ.ErrConsistency,
				fmt.Sprintf("order %d is not a sell order on market %d", cmd.OrderID, m.info.ID))
		}
		if so.Submitter == cmd.Buyer {
			return econ.NewError(econ.ErrUnauthorized, "cannot fill own order")
		}
		if so.Scope != 0 && so.Scope != cmd.Scope {
			return econ.NewError(econ.ErrUnauthorized,
				fmt.Sprintf("order %d is scoped to corporation %d", so.ID, so.Scope))
		}
		if cmd.Bid < so.Price {
			return econ.NewError(econ.ErrInvalidPrice,
				fmt.Sprintf("bid %d below ask %d", cmd.Bid, so.Price))
		}

		dest := cmd.Destination
		if dest == 0 {
			buyer, err := m.people.Participant(ctx, cmd.Buyer)
			if err != nil {
				return err
			}
			dest = buyer.DeliveryContainer(m.info.BaseID)
		}

		// Infinite vendor source: mint the stack, pay the bank.
		if so.Quantity.IsInfinite() {
			qty := cmd.Quantity
			if _, err = tx.MintStack(ctx, so.ItemDef, qty, dest); err != nil {
				return err
			}
			gross := econ.Gross(so.Price, qty)
			err = tx.AdjustWallet(ctx, cmd.Buyer, cmd.CorpWallet, -gross, econ.EntryMarketPurchase)
			if err != nil {
				return err
			}
			if !m.info.Sandbox {
				if err = tx.CreditCentralBank(ctx, gross, econ.EntryVendorSale); err != nil {
					return err
				}
			}
			if err = m.prices.RecordTrade(ctx, tx, so.ItemDef, gross, qty); err != nil {
				return err
			}
			fill = Fill{Delivered: qty, UnitPrice: so.Price, Gross: gross}
			return nil
		}

		avail := so.Quantity.Units()
		fillQty := min(avail, cmd.Quantity)
		gross := econ.Gross(so.Price, fillQty)

		err = tx.AdjustWallet(ctx, cmd.Buyer, cmd.CorpWallet, -gross, econ.EntryMarketPurchase)
		if err != nil {
			return err
		}

		if avail > cmd.Quantity {
			if _, err = tx.SplitStack(ctx, so.ItemID, fillQty, dest); err != nil {
				return err
			}
			if err = tx.SetOrderQuantity(ctx, so.ID, avail-fillQty); err != nil {
				return err
			}
		} else {
			if err = tx.MoveStack(ctx, so.ItemID, dest); err != nil {
				return err
			}
			n, err := tx.DeleteOrder(ctx, so.ID)
			if err != nil {
				return err
			}
			if n == 0 {
				return econ.NewError(econ.ErrConsistency,
					fmt.Sprintf("locked sell order %d vanished", so.ID))
			}
		}

		if so.Vendor {
			// Finite vendor stock: proceeds to the central bank.
			if !m.info.Sandbox {
				if err = tx.CreditCentralBank(ctx, gross, econ.EntryVendorSale); err != nil {
					return err
				}
			}
			if err = m.prices.RecordTrade(ctx, tx, so.ItemDef, gross, fillQty); err != nil {
				return err
			}
		} else {
			_, err = m.PayOutToSeller(ctx, tx, &Payout{
				Seller:         so.Submitter,
				CorpWallet:     so.CorpWallet,
				ItemDef:        so.ItemDef,
				Price:          so.Price,
				Quantity:       fillQty,
				Kind:           econ.EntryMarketSale,
				AffectsAverage: true,
				ForCorporation: so.CorpWallet,
			})
			if err != nil {
				return err
			}
		}

		fill = Fill{Delivered: fillQty, UnitPrice: so.Price, Gross: gross}

		if rest := cmd.Quantity - fillQty; rest > 0 {
			ro := &order.Order{
				MarketID:    m.info.ID,
				ItemDef:     so.ItemDef,
				Submitter:   cmd.Buyer,
				SubmittedAt: m.now().UTC(),
				Duration:    cmd.Duration,
				Price:       cmd.Bid,
				Quantity:    econ.Finite(rest),
				CorpWallet:  cmd.CorpWallet,
				Scope:       cmd.Scope,
			}
			if err = m.holdEscrow(ctx, tx, ro); err != nil {
				return err
			}
			if ro.ID, err = tx.InsertOrder(ctx, ro); err != nil {
				return err
			}
			fill.Resting = ro
		}

		delivered := fillQty
		tx.OnCommit(func() {
			if !so.Vendor {
				note := noteFor(so)
				note.Delivered = delivered
				m.send(so.Submitter, NoteOrderFilled, note)
			}
			if fill.Resting != nil {
				m.send(cmd.Buyer, NoteOrderCreated, noteFor(fill.Resting))
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("Market %d: buyer %d took %d units of order %d at %d",
		m.info.ID, cmd.Buyer, fill.Delivered, cmd.OrderID, fill.UnitPrice)
	return &fill, nil
}

// SellFulfillCmd is a seller delivering units into a resting buy order.
type SellFulfillCmd struct {
	Seller econ.EntityID
	// CorpWallet routes the proceeds, and marks the sale as made on the
	// corporation's behalf.
	CorpWallet bool
	// OrderID is the resting buy order to fill.
	OrderID econ.OrderID
	// Item is the stack sold from. Quantity units are taken from it.
	Item     econ.ItemID
	Quantity uint32
	// Ask is the seller's per-unit limit. It must not exceed the resting
	// bid, and prices any resting remainder offer.
	Ask int64
	// Duration applies to a resting remainder offer.
	Duration time.Duration
	Scope    econ.CorporationID
}

// FulfillSellOrderInstantly settles a seller against a resting buy order at
// the resting bid, funded by the bid's escrow. A buy order larger than the
// offer is decremented in place; one smaller is consumed and the unsold
// remainder becomes a resting sell order at the seller's ask. Infinite vendor
// buy orders destroy the delivered units and the central bank pays.
func (m *Market) FulfillSellOrderInstantly(ctx context.Context, cmd *SellFulfillCmd) (*Fill, error) {
	if cmd.Quantity == 0 {
		return nil, econ.ErrInvalidQuantity
	}

	var fill Fill
	err := m.store.RunTx(ctx, func(tx db.Tx) error {
		bo, err := tx.Order(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if bo.Sell || bo.MarketID != m.info.ID {
			return econ.NewError(econ.ErrConsistency,
				fmt.Sprintf("order %d is not a buy order on market %d", cmd.OrderID, m.info.ID))
		}
		if bo.Submitter == cmd.Seller {
			return econ.NewError(econ.ErrUnauthorized, "cannot fill own order")
		}
		if bo.Scope != 0 && bo.Scope != cmd.Scope {
			return econ.NewError(econ.ErrUnauthorized,
				fmt.Sprintf("order %d is scoped to corporation %d", bo.ID, bo.Scope))
		}
		if cmd.Ask > bo.Price {
			return econ.NewError(econ.ErrInvalidPrice,
				fmt.Sprintf("ask %d above bid %d", cmd.Ask, bo.Price))
		}

		units, err := tx.StackUnits(ctx, cmd.Item)
		if err != nil {
			return err
		}
		if cmd.Quantity > units {
			return econ.NewError(econ.ErrInvalidQuantity,
				fmt.Sprintf("stack %d holds %d units, offer is %d", cmd.Item, units, cmd.Quantity))
		}

		payout := func(qty uint32) error {
			_, err := m.PayOutToSeller(ctx, tx, &Payout{
				Seller:         cmd.Seller,
				CorpWallet:     cmd.CorpWallet,
				ItemDef:        bo.ItemDef,
				Price:          bo.Price,
				Quantity:       qty,
				Kind:           econ.EntryMarketSale,
				AffectsAverage: true,
				ForCorporation: cmd.CorpWallet,
			})
			return err
		}

		// Infinite vendor sink: destroy the units, the bank pays.
		if bo.Quantity.IsInfinite() {
			qty := cmd.Quantity
			sold := cmd.Item
			if qty < units {
				if sold, err = tx.SplitStack(ctx, cmd.Item, qty, m.info.HangarContainer); err != nil {
					return err
				}
			}
			if err = tx.DestroyStack(ctx, sold); err != nil {
				return err
			}
			gross := econ.Gross(bo.Price, qty)
			if !m.info.Sandbox {
				if err = tx.DebitCentralBank(ctx, gross, econ.EntryVendorPurchase); err != nil {
					return err
				}
			}
			if err = payout(qty); err != nil {
				return err
			}
			fill = Fill{Delivered: qty, UnitPrice: bo.Price, Gross: gross}
			return nil
		}

		avail := bo.Quantity.Units()
		fillQty := min(avail, cmd.Quantity)

		buyer, err := m.people.Participant(ctx, bo.Submitter)
		if err != nil {
			return err
		}
		dest := buyer.DeliveryContainer(m.info.BaseID)

		if fillQty == units {
			err = tx.MoveStack(ctx, cmd.Item, dest)
		} else {
			_, err = tx.SplitStack(ctx, cmd.Item, fillQty, dest)
		}
		if err != nil {
			return err
		}

		// The bid's escrow funds the purchase; the buyer's wallet was
		// already debited at order creation.
		gross := econ.Gross(bo.Price, fillQty)
		if !m.info.Sandbox {
			if err = tx.DebitCentralBank(ctx, gross, econ.EntryMarketPurchase); err != nil {
				return err
			}
		}
		if err = payout(fillQty); err != nil {
			return err
		}

		if avail > fillQty {
			if err = tx.SetOrderQuantity(ctx, bo.ID, avail-fillQty); err != nil {
				return err
			}
		} else {
			n, err := tx.DeleteOrder(ctx, bo.ID)
			if err != nil {
				return err
			}
			if n == 0 {
				return econ.NewError(econ.ErrConsistency,
					fmt.Sprintf("locked buy order %d vanished", bo.ID))
			}
		}

		fill = Fill{Delivered: fillQty, UnitPrice: bo.Price, Gross: gross}

		if rest := cmd.Quantity - fillQty; rest > 0 {
			restStack := cmd.Item
			if units-fillQty == rest {
				err = tx.MoveStack(ctx, cmd.Item, m.info.HangarContainer)
			} else {
				restStack, err = tx.SplitStack(ctx, cmd.Item, rest, m.info.HangarContainer)
			}
			if err != nil {
				return err
			}
			ro := &order.Order{
				MarketID:    m.info.ID,
				ItemID:      restStack,
				ItemDef:     bo.ItemDef,
				Submitter:   cmd.Seller,
				SubmittedAt: m.now().UTC(),
				Duration:    cmd.Duration,
				Price:       cmd.Ask,
				Quantity:    econ.Finite(rest),
				Sell:        true,
				CorpWallet:  cmd.CorpWallet,
				Scope:       cmd.Scope,
			}
			if ro.ID, err = tx.InsertOrder(ctx, ro); err != nil {
				return err
			}
			fill.Resting = ro
		}

		delivered := fillQty
		tx.OnCommit(func() {
			note := noteFor(bo)
			note.Delivered = delivered
			m.send(bo.Submitter, NoteOrderFilled, note)
			if fill.Resting != nil {
				m.send(cmd.Seller, NoteOrderCreated, noteFor(fill.Resting))
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("Market %d: seller %d delivered %d units into order %d at %d",
		m.info.ID, cmd.Seller, fill.Delivered, cmd.OrderID, fill.UnitPrice)
	return &fill, nil
}

// AutoProcessSellOrders crosses two resting orders, a sell against a buy,
// without player interaction. Settlement is at the resting ask; the bid-ask
// spread held in the bid's escrow is refunded to the buyer. Both orders must
// be finite. Orders are locked in ascending ID order so concurrent matchers
// cannot deadlock.
func (m *Market) AutoProcessSellOrders(ctx context.Context, sellID, buyID econ.OrderID) (*Fill, error) {
	var fill Fill
	err := m.store.RunTx(ctx, func(tx db.Tx) error {
		first, second := sellID, buyID
		if buyID < sellID {
			first, second = buyID, sellID
		}
		a, err := tx.Order(ctx, first)
		if err != nil {
			return err
		}
		b, err := tx.Order(ctx, second)
		if err != nil {
			return err
		}
		so, bo := a, b
		if so.ID != sellID {
			so, bo = b, a
		}

		switch {
		case !so.Sell || bo.Sell:
			return econ.NewError(econ.ErrConsistency,
				fmt.Sprintf("orders %d/%d are not a sell/buy pair", sellID, buyID))
		case so.MarketID != m.info.ID || bo.MarketID != m.info.ID:
			return econ.NewError(econ.ErrConsistency, "orders are not on this market")
		case so.Quantity.IsInfinite() || bo.Quantity.IsInfinite():
			return econ.NewError(econ.ErrConsistency, "vendor orders are not auto-matched")
		case so.ItemDef != bo.ItemDef:
			return econ.NewError(econ.ErrConsistency, "orders are for different items")
		case so.Price > bo.Price:
			return econ.NewError(econ.ErrInvalidPrice,
				fmt.Sprintf("ask %d above bid %d", so.Price, bo.Price))
		}

		fillQty := min(so.Quantity.Units(), bo.Quantity.Units())

		buyer, err := m.people.Participant(ctx, bo.Submitter)
		if err != nil {
			return err
		}
		dest := buyer.DeliveryContainer(m.info.BaseID)

		if so.Quantity.Units() > fillQty {
			if _, err = tx.SplitStack(ctx, so.ItemID, fillQty, dest); err != nil {
				return err
			}
			if err = tx.SetOrderQuantity(ctx, so.ID, so.Quantity.Units()-fillQty); err != nil {
				return err
			}
		} else {
			if err = tx.MoveStack(ctx, so.ItemID, dest); err != nil {
				return err
			}
			n, err := tx.DeleteOrder(ctx, so.ID)
			if err != nil {
				return err
			}
			if n == 0 {
				return econ.NewError(econ.ErrConsistency,
					fmt.Sprintf("locked sell order %d vanished", so.ID))
			}
		}

		// Release escrow at the bid, refund the spread, pay the seller the
		// ask. The three legs sum to the released amount exactly.
		release := econ.Gross(bo.Price, fillQty)
		spread := release - econ.Gross(so.Price, fillQty)
		if !m.info.Sandbox {
			if err = tx.DebitCentralBank(ctx, release, econ.EntryMarketPurchase); err != nil {
				return err
			}
		}
		if spread > 0 {
			err = tx.AdjustWallet(ctx, bo.Submitter, bo.CorpWallet, spread, econ.EntryMarketEscrowRefund)
			if err != nil {
				return err
			}
		}
		_, err = m.PayOutToSeller(ctx, tx, &Payout{
			Seller:         so.Submitter,
			CorpWallet:     so.CorpWallet,
			ItemDef:        so.ItemDef,
			Price:          so.Price,
			Quantity:       fillQty,
			Kind:           econ.EntryMarketSale,
			AffectsAverage: true,
			ForCorporation: so.CorpWallet,
		})
		if err != nil {
			return err
		}

		if bo.Quantity.Units() > fillQty {
			if err = tx.SetOrderQuantity(ctx, bo.ID, bo.Quantity.Units()-fillQty); err != nil {
				return err
			}
		} else {
			n, err := tx.DeleteOrder(ctx, bo.ID)
			if err != nil {
				return err
			}
			if n == 0 {
				return econ.NewError(econ.ErrConsistency,
					fmt.Sprintf("locked buy order %d vanished", bo.ID))
			}
		}

		fill = Fill{Delivered: fillQty, UnitPrice: so.Price, Gross: econ.Gross(so.Price, fillQty)}

		delivered := fillQty
		tx.OnCommit(func() {
			sellNote := noteFor(so)
			sellNote.Delivered = delivered
			m.send(so.Submitter, NoteOrderFilled, sellNote)
			buyNote := noteFor(bo)
			buyNote.Delivered = delivered
			m.send(bo.Submitter, NoteOrderFilled, buyNote)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("Market %d: auto-matched sell %d against buy %d for %d units at %d",
		m.info.ID, sellID, buyID, fill.Delivered, fill.UnitPrice)
	return &fill, nil
}
