// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package pg

import (
	"database/sql"
	"time"

	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/order"
)

// rowScanner is implemented by sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// nullableItemID encodes an ItemID column value. Buy orders carry no stack,
// encoded as NULL.
func nullableItemID(id econ.ItemID) interface{} {
	if id == 0 {
		return nil
	}
	return int64(id)
}

// nullableQuantity encodes a Quantity column value. The infinite vendor
// variant is encoded as NULL; finite quantities are positive.
func nullableQuantity(q econ.Quantity) interface{} {
	if q.IsInfinite() {
		return nil
	}
	return int64(q.Units())
}

// scanOrder decodes one order row.
func scanOrder(row rowScanner) (*order.Order, error) {
	var ord order.Order
	var itemID, qty sql.NullInt64
	var durSecs int64
	err := row.Scan(&ord.ID, &ord.MarketID, &itemID, &ord.ItemDef,
		&ord.Submitter, &ord.SubmittedAt, &durSecs, &ord.Sell, &ord.Price,
		&qty, &ord.CorpWallet, &ord.Vendor, &ord.Scope)
	if err != nil {
		return nil, err
	}

	if itemID.Valid {
		ord.ItemID = econ.ItemID(itemID.Int64)
	}
	if qty.Valid {
		ord.Quantity = econ.Finite(uint32(qty.Int64))
	} else {
		ord.Quantity = econ.Infinite()
	}
	ord.Duration = time.Duration(durSecs) * time.Second
	ord.SubmittedAt = ord.SubmittedAt.UTC()

	return &ord, nil
}
