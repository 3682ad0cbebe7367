package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/weng-chenghui/pulsive"
	"github.com/weng-chenghui/pulsive/internal/config"
	"github.com/weng-chenghui/pulsive/internal/netcode"
	"github.com/weng-chenghui/pulsive/internal/script"
	"github.com/weng-chenghui/pulsive/internal/storage"
)

// tickInterval paces the daemon's main loop when no host embeds it
// directly; a host-bridge-driven process ticks on its own schedule
// instead of calling serve at all.
const tickInterval = 200 * time.Millisecond

// serve wires config, scripts, storage, and the Hub together and runs
// the simulation until the process receives SIGINT/SIGTERM. A non-nil
// error here always maps to the listen-failure exit code (§6): serve
// fails on a listener or storage problem or on a script directory that
// does not load, config parsing having already succeeded.
func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ScriptDir != "" {
		defs, err := script.NewLoader().LoadDir(cfg.ScriptDir)
		if err != nil {
			return fmt.Errorf("load scripts: %w", err)
		}
		log.Info().Int("resources", len(defs.Resources)).Int("events", len(defs.Events)).
			Int("entity_types", len(defs.EntityTypes)).Str("dir", cfg.ScriptDir).Msg("scripts loaded")
	}

	var store *storage.Store
	if cfg.StoragePath != "" {
		var err error
		store, err = storage.Open(cfg.StoragePath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()
	}

	hub := pulsive.NewHub(cfg.HubConfig()).WithLogger(log)
	hub.AddTickSyncGroup()

	if store != nil {
		if model, err := store.LoadModel(); err == nil {
			hub.SetModel(model)
			log.Info().Uint64("tick", model.CurrentTick()).Msg("restored model from storage")
		}
	}

	var srv *http.Server
	var listenErr chan error
	if cfg.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/netcode", func(w http.ResponseWriter, r *http.Request) {
			conn, err := netcode.AcceptWS(w, r)
			if err != nil {
				log.Warn().Err(err).Msg("netcode upgrade failed")
				return
			}
			defer conn.Close()
		})
		srv = &http.Server{Addr: cfg.ListenAddr, Handler: mux}

		listenErr = make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.ListenAddr).Msg("netcode listener starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				listenErr <- err
				return
			}
			listenErr <- nil
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-listenErr:
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
			}
			listenErr = nil
		case <-ctx.Done():
			log.Info().Msg("shutdown requested")
			if store != nil {
				if err := store.SaveModel(hub.Model()); err != nil {
					log.Warn().Err(err).Msg("save on shutdown failed")
				}
			}
			return nil
		case <-ticker.C:
			if _, err := hub.Tick(); err != nil {
				log.Warn().Err(err).Msg("tick failed")
			}
		}
	}
}
