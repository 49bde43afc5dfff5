// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package pg

import (
	"context"
	"fmt"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/db/driver/pg/internal"
	"github.com/orbitforge/worldmarket/econ"

	"time"
)

func appendSample(ctx context.Context, dbe executor, s *db.PriceSample) error {
	if s.Quantity <= 0 {
		return db.ArchiveError{Code: db.ErrGeneralFailure,
			Detail: "price sample without quantity"}
	}
	_, err := sqlExec(ctx, dbe, internal.UpsertPriceSample,
		s.MarketID, s.ItemDef, db.BucketStart(s.Bucket),
		s.TotalPrice, s.Quantity, s.High, s.Low)
	if err != nil {
		return fmt.Errorf("failed to append price sample: %w", err)
	}
	return nil
}

func windowSum(ctx context.Context, dbe executor, mkt econ.MarketID, def econ.ItemDefID, since time.Time) (totalPrice, quantity int64, err error) {
	err = dbe.QueryRowContext(ctx, internal.SelectWindowSum,
		mkt, def, since.UTC()).Scan(&totalPrice, &quantity)
	return
}

// AppendSample folds a trade sample into its 6-hour bucket row. See
// db.PriceArchiver.
func (a *Archiver) AppendSample(ctx context.Context, s *db.PriceSample) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return appendSample(ctx, a.db, s)
}

// WindowSum sums total price and quantity over all buckets at or after since.
// See db.PriceArchiver.
func (a *Archiver) WindowSum(ctx context.Context, mkt econ.MarketID, def econ.ItemDefID, since time.Time) (int64, int64, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return windowSum(ctx, a.db, mkt, def, since)
}
