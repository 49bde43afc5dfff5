// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/econ"
)

type marketConfig struct {
	Markets []*struct {
		ID              uint32   `json:"id"`
		Name            string   `json:"name"`
		Base            uint32   `json:"base"`
		OwnerCorp       uint64   `json:"ownerCorp"`
		PlayerOwned     bool     `json:"playerOwned"`
		Sandbox         bool     `json:"sandbox"`
		TaxRate         *float64 `json:"taxRate"`
		PublicContainer uint64   `json:"publicContainer"`
		HangarContainer uint64   `json:"hangarContainer"`
	} `json:"markets"`
}

func loadMarketConfFile(marketsJSON string) ([]*db.MarketInfo, error) {
	src, err := os.Open(marketsJSON)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return loadMarketConf(src)
}

func loadMarketConf(src io.Reader) ([]*db.MarketInfo, error) {
	settings, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	var conf marketConfig
	if err = json.Unmarshal(settings, &conf); err != nil {
		return nil, err
	}

	seen := make(map[uint32]bool, len(conf.Markets))
	markets := make([]*db.MarketInfo, 0, len(conf.Markets))
	for i, mktConf := range conf.Markets {
		if mktConf.ID == 0 {
			return nil, fmt.Errorf("market %d: id is required", i)
		}
		if seen[mktConf.ID] {
			return nil, fmt.Errorf("duplicate market id %d", mktConf.ID)
		}
		seen[mktConf.ID] = true
		if mktConf.PublicContainer == 0 || mktConf.HangarContainer == 0 {
			return nil, fmt.Errorf("market %d: publicContainer and hangarContainer are required",
				mktConf.ID)
		}
		if mktConf.PlayerOwned && mktConf.OwnerCorp == 0 {
			return nil, fmt.Errorf("market %d: player-owned markets need an ownerCorp",
				mktConf.ID)
		}

		taxRate := db.DefaultTaxRate
		if mktConf.Sandbox {
			taxRate = 0
		}
		if mktConf.TaxRate != nil {
			taxRate = econ.ClampRate(*mktConf.TaxRate)
		}

		markets = append(markets, &db.MarketInfo{
			ID:              econ.MarketID(mktConf.ID),
			Name:            mktConf.Name,
			BaseID:          econ.BaseID(mktConf.Base),
			OwnerCorp:       econ.CorporationID(mktConf.OwnerCorp),
			PlayerOwned:     mktConf.PlayerOwned,
			Sandbox:         mktConf.Sandbox,
			TaxRate:         taxRate,
			PublicContainer: econ.ContainerID(mktConf.PublicContainer),
			HangarContainer: econ.ContainerID(mktConf.HangarContainer),
		})
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("no markets defined in configuration")
	}

	log.Debug("-------------------- BEGIN parsed markets.json --------------------")
	for _, mkt := range markets {
		log.Debugf("Market %d (%s): base %d, tax %.4f, sandbox %v, player-owned %v",
			mkt.ID, mkt.Name, mkt.BaseID, mkt.TaxRate, mkt.Sandbox, mkt.PlayerOwned)
	}
	log.Debug("--------------------- END parsed markets.json ---------------------")

	return markets, nil
}
