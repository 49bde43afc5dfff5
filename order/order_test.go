// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package order

import (
	"errors"
	"testing"
	"time"

	"github.com/orbitforge/worldmarket/econ"
)

func TestValidate(t *testing.T) {
	base := Order{Price: 100, Quantity: econ.Finite(5)}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}

	neg := base
	neg.Price = -1
	if err := neg.Validate(); !errors.Is(err, econ.ErrInvalidPrice) {
		t.Errorf("negative price error = %v", err)
	}

	zero := base
	zero.Quantity = econ.Finite(0)
	if err := zero.Validate(); !errors.Is(err, econ.ErrInvalidQuantity) {
		t.Errorf("zero quantity error = %v", err)
	}

	free := base
	free.Price = 0
	if err := free.Validate(); err != nil {
		t.Errorf("zero price rejected: %v", err)
	}

	inf := base
	inf.Quantity = econ.Infinite()
	if err := inf.Validate(); !errors.Is(err, econ.ErrInvalidQuantity) {
		t.Errorf("non-vendor infinite error = %v", err)
	}
	inf.Vendor = true
	if err := inf.Validate(); err != nil {
		t.Errorf("vendor infinite rejected: %v", err)
	}
}

func TestCanModify(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ord := Order{SubmittedAt: submitted}

	if ord.CanModify(submitted.Add(CancelProtection - time.Second)) {
		t.Errorf("modifiable inside the protection window")
	}
	if !ord.CanModify(submitted.Add(CancelProtection)) {
		t.Errorf("not modifiable exactly at the window boundary")
	}
	if !ord.CanModify(submitted.Add(time.Hour)) {
		t.Errorf("not modifiable after the window")
	}
}

func TestExpiry(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	permanent := Order{SubmittedAt: submitted}
	if _, expires := permanent.ExpiresAt(); expires {
		t.Errorf("zero-duration order expires")
	}
	if permanent.ExpiredBy(submitted.Add(1000*time.Hour), 1.0) {
		t.Errorf("zero-duration order expired")
	}

	day := Order{SubmittedAt: submitted, Duration: 24 * time.Hour}
	at, expires := day.ExpiresAt()
	if !expires || !at.Equal(submitted.Add(24*time.Hour)) {
		t.Errorf("ExpiresAt = %v, %v", at, expires)
	}
	if day.ExpiredBy(submitted.Add(23*time.Hour), 1.0) {
		t.Errorf("expired before duration elapsed")
	}
	if !day.ExpiredBy(submitted.Add(25*time.Hour), 1.0) {
		t.Errorf("not expired after duration elapsed")
	}
	// A lower threshold ratio expires sooner.
	if !day.ExpiredBy(submitted.Add(13*time.Hour), 0.5) {
		t.Errorf("not expired past half duration with ratio 0.5")
	}
}

func TestEscrow(t *testing.T) {
	buy := Order{Price: 100, Quantity: econ.Finite(7)}
	if e := buy.Escrow(); e != 700 {
		t.Errorf("buy escrow = %d, want 700", e)
	}

	sell := buy
	sell.Sell = true
	if e := sell.Escrow(); e != 0 {
		t.Errorf("sell escrow = %d, want 0", e)
	}

	vendor := Order{Price: 100, Quantity: econ.Infinite(), Vendor: true}
	if e := vendor.Escrow(); e != 0 {
		t.Errorf("vendor escrow = %d, want 0", e)
	}
}
