// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package econ

import (
	"errors"
	"testing"
)

func TestQuantity(t *testing.T) {
	q := Finite(10)
	if q.IsInfinite() || q.IsZero() || q.Units() != 10 {
		t.Fatalf("Finite(10) = %v", q)
	}

	q, err := q.Sub(4)
	if err != nil {
		t.Fatalf("Sub(4): %v", err)
	}
	if q.Units() != 6 {
		t.Errorf("remaining = %d, want 6", q.Units())
	}

	if _, err = q.Sub(7); err == nil {
		t.Errorf("Sub beyond remaining did not error")
	}
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Sub error = %v, want ErrInvalidQuantity", err)
	}

	q, err = q.Sub(6)
	if err != nil {
		t.Fatalf("Sub to zero: %v", err)
	}
	if !q.IsZero() {
		t.Errorf("exhausted quantity not zero: %v", q)
	}

	inf := Infinite()
	if !inf.IsInfinite() || inf.IsZero() {
		t.Fatalf("Infinite() = %v", inf)
	}
	inf2, err := inf.Sub(1e6)
	if err != nil {
		t.Fatalf("Sub on infinite: %v", err)
	}
	if !inf2.IsInfinite() {
		t.Errorf("infinite quantity lost infinity after Sub")
	}
	if inf.String() != "inf" {
		t.Errorf("String() = %q", inf.String())
	}
}

func TestTaxDue(t *testing.T) {
	tests := []struct {
		name  string
		gross int64
		rate  float64
		want  int64
	}{
		{"scenario rate", 1000, 0.12, 120},
		{"round up", 101, 0.125, 13},      // 12.625
		{"round down", 102, 0.12, 12},     // 12.24
		{"half rounds away", 50, 0.13, 7}, // 6.5
		{"zero rate", 1000, 0, 0},
		{"full rate", 1000, 1, 1000},
	}
	for _, test := range tests {
		if got := TaxDue(test.gross, test.rate); got != test.want {
			t.Errorf("%s: TaxDue(%d, %f) = %d, want %d",
				test.name, test.gross, test.rate, got, test.want)
		}
	}

	// Net plus tax must always reconstruct gross exactly.
	for gross := int64(0); gross < 1000; gross += 7 {
		tax := TaxDue(gross, 0.1234)
		net := gross - tax
		if net+tax != gross {
			t.Fatalf("conservation broken at gross %d", gross)
		}
	}
}

func TestClampRate(t *testing.T) {
	if r := ClampRate(-0.5); r != 0 {
		t.Errorf("ClampRate(-0.5) = %f", r)
	}
	if r := ClampRate(1.5); r != 1 {
		t.Errorf("ClampRate(1.5) = %f", r)
	}
	if r := ClampRate(0.12); r != 0.12 {
		t.Errorf("ClampRate(0.12) = %f", r)
	}
}

func TestErrorWrapping(t *testing.T) {
	err := NewError(ErrInsufficientFunds, "wallet 5")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("errors.Is failed for wrapped kind")
	}
	if err.Error() != "insufficient funds: wallet 5" {
		t.Errorf("Error() = %q", err.Error())
	}
}
