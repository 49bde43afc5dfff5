// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package pg

import (
	"database/sql"
	"testing"
	"time"

	"github.com/orbitforge/worldmarket/econ"
)

func TestNullableItemID(t *testing.T) {
	if v := nullableItemID(0); v != nil {
		t.Errorf("nullableItemID(0) = %v, want nil", v)
	}
	if v := nullableItemID(42); v != int64(42) {
		t.Errorf("nullableItemID(42) = %v", v)
	}
}

func TestNullableQuantity(t *testing.T) {
	if v := nullableQuantity(econ.Infinite()); v != nil {
		t.Errorf("infinite quantity encoded as %v, want nil", v)
	}
	if v := nullableQuantity(econ.Finite(7)); v != int64(7) {
		t.Errorf("Finite(7) encoded as %v", v)
	}
}

// orderRow fakes an order row in the column order of internal.SelectOrder.
type orderRow struct {
	id        econ.OrderID
	mkt       econ.MarketID
	item      sql.NullInt64
	def       econ.ItemDefID
	submitter econ.EntityID
	submitted time.Time
	durSecs   int64
	sell      bool
	price     int64
	qty       sql.NullInt64
	corp      bool
	vendor    bool
	scope     econ.CorporationID
}

func (r *orderRow) Scan(dest ...interface{}) error {
	*(dest[0].(*econ.OrderID)) = r.id
	*(dest[1].(*econ.MarketID)) = r.mkt
	*(dest[2].(*sql.NullInt64)) = r.item
	*(dest[3].(*econ.ItemDefID)) = r.def
	*(dest[4].(*econ.EntityID)) = r.submitter
	*(dest[5].(*time.Time)) = r.submitted
	*(dest[6].(*int64)) = r.durSecs
	*(dest[7].(*bool)) = r.sell
	*(dest[8].(*int64)) = r.price
	*(dest[9].(*sql.NullInt64)) = r.qty
	*(dest[10].(*bool)) = r.corp
	*(dest[11].(*bool)) = r.vendor
	*(dest[12].(*econ.CorporationID)) = r.scope
	return nil
}

func TestScanOrder(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	row := &orderRow{
		id:        11,
		mkt:       1,
		item:      sql.NullInt64{Int64: 9000, Valid: true},
		def:       42,
		submitter: 20,
		submitted: submitted,
		durSecs:   86400,
		sell:      true,
		price:     100,
		qty:       sql.NullInt64{Int64: 10, Valid: true},
		scope:     900,
	}

	ord, err := scanOrder(row)
	if err != nil {
		t.Fatalf("scanOrder: %v", err)
	}
	if ord.ID != 11 || ord.MarketID != 1 || ord.ItemID != 9000 ||
		ord.ItemDef != 42 || ord.Submitter != 20 || !ord.Sell ||
		ord.Price != 100 || ord.Scope != 900 {
		t.Errorf("order = %+v", ord)
	}
	if ord.Quantity.IsInfinite() || ord.Quantity.Units() != 10 {
		t.Errorf("quantity = %v", ord.Quantity)
	}
	if ord.Duration != 24*time.Hour {
		t.Errorf("duration = %v", ord.Duration)
	}
	// Timestamps normalize to UTC.
	if loc := ord.SubmittedAt.Location(); loc != time.UTC {
		t.Errorf("submitted location = %v", loc)
	}
	if !ord.SubmittedAt.Equal(submitted) {
		t.Errorf("submitted = %v, want %v", ord.SubmittedAt, submitted)
	}

	// NULL item and quantity: a vendor buy order with an infinite appetite.
	row.item = sql.NullInt64{}
	row.qty = sql.NullInt64{}
	row.sell = false
	row.vendor = true
	ord, err = scanOrder(row)
	if err != nil {
		t.Fatalf("scanOrder: %v", err)
	}
	if ord.ItemID != 0 {
		t.Errorf("NULL item scanned as %d", ord.ItemID)
	}
	if !ord.Quantity.IsInfinite() {
		t.Errorf("NULL quantity scanned as %v", ord.Quantity)
	}
	if !ord.Vendor {
		t.Errorf("vendor flag lost")
	}
}
