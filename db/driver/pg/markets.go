// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package pg

import (
	"context"
	"fmt"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/db/driver/pg/internal"
	"github.com/orbitforge/worldmarket/econ"
)

func selectMarkets(ctx context.Context, dbe executor) ([]*db.MarketInfo, error) {
	rows, err := dbe.QueryContext(ctx, internal.SelectMarkets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mkts []*db.MarketInfo
	for rows.Next() {
		var mkt db.MarketInfo
		err = rows.Scan(&mkt.ID, &mkt.Name, &mkt.BaseID, &mkt.OwnerCorp,
			&mkt.PlayerOwned, &mkt.Sandbox, &mkt.TaxRate,
			&mkt.PublicContainer, &mkt.HangarContainer)
		if err != nil {
			return nil, err
		}
		mkts = append(mkts, &mkt)
	}
	return mkts, rows.Err()
}

func setMarketTax(ctx context.Context, dbe executor, mkt econ.MarketID, rate float64) error {
	n, err := sqlExec(ctx, dbe, internal.UpdateMarketTax, econ.ClampRate(rate), mkt)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ArchiveError{Code: db.ErrUnknownMarket,
			Detail: fmt.Sprintf("market %d", mkt)}
	}
	return nil
}

func appendTaxChange(ctx context.Context, dbe executor, ch *db.TaxChange) error {
	_, err := sqlExec(ctx, dbe, internal.InsertTaxChange,
		ch.OwnerID, ch.CharacterID, ch.BaseID,
		ch.ChangeFrom, ch.ChangeTo, ch.EventTime.UTC())
	if err != nil {
		return fmt.Errorf("failed to append tax change: %w", err)
	}
	return nil
}

func selectTaxChanges(ctx context.Context, dbe executor, base econ.BaseID, limit int) ([]*db.TaxChange, error) {
	rows, err := dbe.QueryContext(ctx, internal.SelectTaxChanges, base, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chs []*db.TaxChange
	for rows.Next() {
		var ch db.TaxChange
		err = rows.Scan(&ch.OwnerID, &ch.CharacterID, &ch.BaseID,
			&ch.ChangeFrom, &ch.ChangeTo, &ch.EventTime)
		if err != nil {
			return nil, err
		}
		ch.EventTime = ch.EventTime.UTC()
		chs = append(chs, &ch)
	}
	return chs, rows.Err()
}

// Markets lists all venue configurations. See db.MarketArchiver.
func (a *Archiver) Markets(ctx context.Context) ([]*db.MarketInfo, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return selectMarkets(ctx, a.db)
}

// SetMarketTax persists a tax override. See db.MarketArchiver.
func (a *Archiver) SetMarketTax(ctx context.Context, mkt econ.MarketID, rate float64) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return setMarketTax(ctx, a.db, mkt, rate)
}

// AppendTaxChange appends a tax audit record. See db.TaxArchiver.
func (a *Archiver) AppendTaxChange(ctx context.Context, ch *db.TaxChange) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return appendTaxChange(ctx, a.db, ch)
}

// TaxChanges lists a base's tax audit records, newest first. See
// db.TaxArchiver.
func (a *Archiver) TaxChanges(ctx context.Context, base econ.BaseID, limit int) ([]*db.TaxChange, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return selectTaxChanges(ctx, a.db, base, limit)
}
