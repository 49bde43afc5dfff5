// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"os"
	goruntime "runtime"
	"strconv"
	"sync"
	"time"

	"github.com/orbitforge/worldmarket/admin"
	"github.com/orbitforge/worldmarket/db/driver/pg"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/engine"
)

const (
	// appName is the application name.
	appName = "marketd"
)

// Version is the application version. It is defined as a variable so it can
// be overridden during the build process with
// '-ldflags "-X main.Version=fullsemver"' if needed.
var Version = "0.1.0-pre"

func mainCore(ctx context.Context) error {
	// Parse the configuration file, and setup logger.
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Failed to load marketd config: %s\n", err.Error())
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	var adminSrvAuthSHA [32]byte
	if cfg.AdminSrvOn {
		if len(cfg.AdminSrvPW) == 0 {
			return fmt.Errorf("admin server enabled without a password")
		}
		adminSrvAuthSHA = sha256.Sum256(cfg.AdminSrvPW)
	}

	// Display app version.
	log.Infof("%s version %v (Go version %s)", appName, Version, goruntime.Version())

	// Load the venue configurations.
	markets, err := loadMarketConfFile(cfg.MarketsConfPath)
	if err != nil {
		return fmt.Errorf("failed to load market config %q: %v",
			cfg.MarketsConfPath, err)
	}
	log.Infof("Loaded %d markets", len(markets))

	// Assemble the engine.
	dbPort := ""
	if cfg.DBPort != 0 {
		dbPort = strconv.Itoa(int(cfg.DBPort))
	}
	eng, err := engine.New(ctx, &engine.Config{
		DBConf: &pg.Config{
			Host:   cfg.DBHost,
			Port:   dbPort,
			User:   cfg.DBUser,
			Pass:   cfg.DBPass,
			DBName: cfg.DBName,
		},
		Markets:       markets,
		SweepInterval: cfg.SweepInterval,
		ExpiryRatio:   cfg.ExpiryRatio,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup

	// Notification websocket. Authentication happens upstream at the game's
	// session gateway, which forwards the character id.
	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		charStr := r.URL.Query().Get("char")
		char, err := strconv.ParseUint(charStr, 10, 64)
		if err != nil || char == 0 {
			http.Error(w, "invalid character id", http.StatusBadRequest)
			return
		}
		if err := eng.Hub().ServeWS(w, r, econ.EntityID(char)); err != nil {
			log.Debugf("Websocket upgrade failed for %s: %v", r.RemoteAddr, err)
		}
	})
	wsSrv := &http.Server{
		Addr:         cfg.WSListen,
		Handler:      wsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Infof("Notification server listening on %s", cfg.WSListen)
		if err := wsSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("Notification server error: %v", err)
			requestShutdown()
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		if err := wsSrv.Shutdown(context.Background()); err != nil {
			log.Errorf("Notification server shutdown: %v", err)
		}
	}()

	// Admin server.
	if cfg.AdminSrvOn {
		adminServer, err := admin.NewServer(&admin.SrvConfig{
			Core:    eng,
			Addr:    cfg.AdminSrvAddr,
			AuthSHA: adminSrvAuthSHA,
			Cert:    cfg.Cert,
			Key:     cfg.Key,
		})
		if err != nil {
			return fmt.Errorf("cannot set up admin server: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			adminServer.Run(ctx)
		}()
	}

	log.Info("The market engine is running. Hit CTRL+C to quit...")
	eng.Run(ctx)
	wg.Wait()
	log.Info("Bye!")

	return nil
}

func main() {
	// Create a context that is canceled when a shutdown request is received
	// via requestShutdown.
	ctx := withShutdownCancel(context.Background())
	// Listen for both interrupt signals (e.g. CTRL+C) and shutdown requests
	// (requestShutdown calls).
	go shutdownListener()

	err := mainCore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}
