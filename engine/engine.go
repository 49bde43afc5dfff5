// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package engine assembles the market daemon: the archivist, the per-venue
// market aggregates, the price registry, the notification hub, and the expiry
// sweeper, behind one constructor and one Run loop.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/db/driver/pg"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/market"
	"github.com/orbitforge/worldmarket/notify"
	"github.com/orbitforge/worldmarket/price"
	"github.com/orbitforge/worldmarket/sweeper"
)

var log = econ.Disabled

// UseLogger sets the package logger.
func UseLogger(logger econ.Logger) {
	log = logger
}

// Config collects everything New needs.
type Config struct {
	DBConf  *pg.Config
	Markets []*db.MarketInfo
	// Visibility may be nil; all markets are then visible to everyone.
	Visibility econ.VisibilitySource
	// SweepInterval and ExpiryRatio select the sweeper cadence. Zero values
	// pick the defaults.
	SweepInterval time.Duration
	ExpiryRatio   float64
}

// Engine is the assembled daemon core.
type Engine struct {
	store    *pg.Archiver
	registry *price.Registry
	hub      *notify.Hub
	sweep    *sweeper.Sweeper

	mtx     sync.RWMutex
	markets map[econ.MarketID]*market.Market
}

// New connects the archivist and constructs a Market for every configured
// venue. The returned Engine is not running; call Run.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	if len(cfg.Markets) == 0 {
		return nil, fmt.Errorf("no markets configured")
	}

	cfg.DBConf.Markets = cfg.Markets
	store, err := pg.NewArchiver(ctx, cfg.DBConf)
	if err != nil {
		return nil, fmt.Errorf("db setup failed: %w", err)
	}

	// Venue rows may carry a newer tax rate than the static config.
	stored, err := store.Markets(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	rates := make(map[econ.MarketID]float64, len(stored))
	for _, info := range stored {
		rates[info.ID] = info.TaxRate
	}
	for _, info := range cfg.Markets {
		if rate, found := rates[info.ID]; found {
			info.TaxRate = rate
		}
	}

	registry := price.NewRegistry(store, cfg.Markets, cfg.Visibility)
	hub := notify.NewHub(ctx)

	markets := make(map[econ.MarketID]*market.Market, len(cfg.Markets))
	cancellers := make([]sweeper.Canceller, 0, len(cfg.Markets))
	for _, info := range cfg.Markets {
		collector, err := registry.Collector(info.ID)
		if err != nil {
			store.Close()
			return nil, err
		}
		mkt, err := market.New(&market.Config{
			Info:     info,
			Store:    store,
			Prices:   collector,
			People:   store,
			Notifier: hub,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		markets[info.ID] = mkt
		cancellers = append(cancellers, mkt)
	}

	return &Engine{
		store:    store,
		registry: registry,
		hub:      hub,
		sweep:    sweeper.New(store, cancellers, cfg.SweepInterval, cfg.ExpiryRatio),
		markets:  markets,
	}, nil
}

// Run starts the background services and blocks until the context is
// canceled, then closes the archivist.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.sweep.Run(ctx)
	}()

	log.Infof("Market engine running with %d venues", len(e.markets))
	<-ctx.Done()
	wg.Wait()
	if err := e.store.Close(); err != nil {
		log.Errorf("Archivist close: %v", err)
	}
}

// Market returns one venue's aggregate.
func (e *Engine) Market(id econ.MarketID) (*market.Market, error) {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	mkt, found := e.markets[id]
	if !found {
		return nil, db.ArchiveError{Code: db.ErrUnknownMarket}
	}
	return mkt, nil
}

// Hub is the notification hub, for attaching websocket clients.
func (e *Engine) Hub() *notify.Hub {
	return e.hub
}

// Markets lists the configured venues. Part of the admin server's core
// surface.
func (e *Engine) Markets() []*db.MarketInfo {
	return e.registry.Markets()
}

// MarketAverage is one venue's rolling average price for an item.
func (e *Engine) MarketAverage(ctx context.Context, mkt econ.MarketID, def econ.ItemDefID) (price.Average, bool, error) {
	return e.registry.Average(ctx, mkt, def)
}

// WorldAverage is the world-aggregate rolling average price for an item.
func (e *Engine) WorldAverage(ctx context.Context, def econ.ItemDefID) (price.Average, bool, error) {
	return e.registry.WorldAverage(ctx, def)
}

// TaxLog lists the newest tax changes for a base.
func (e *Engine) TaxLog(ctx context.Context, base econ.BaseID, limit int) ([]*db.TaxChange, error) {
	return e.store.TaxChanges(ctx, base, limit)
}

// SetMarketTax is the operator tax override.
func (e *Engine) SetMarketTax(ctx context.Context, mkt econ.MarketID, rate float64) error {
	m, err := e.Market(mkt)
	if err != nil {
		return err
	}
	return m.OverrideTax(ctx, rate)
}

// TreasuryBalance is the central bank's current balance.
func (e *Engine) TreasuryBalance(ctx context.Context) (int64, error) {
	return e.store.CentralBankBalance(ctx)
}
