package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/focusdeck/focusdeck/internal/api"
	"github.com/focusdeck/focusdeck/internal/app/accounts"
	"github.com/focusdeck/focusdeck/internal/app/agent"
	"github.com/focusdeck/focusdeck/internal/app/ledger"
	"github.com/focusdeck/focusdeck/internal/app/meter"
	"github.com/focusdeck/focusdeck/internal/app/records"
	"github.com/focusdeck/focusdeck/internal/app/syncer"
	"github.com/focusdeck/focusdeck/internal/domain"
	"github.com/focusdeck/focusdeck/internal/infra/bus"
	"github.com/focusdeck/focusdeck/internal/infra/localstore"
	"github.com/focusdeck/focusdeck/internal/infra/sqlite"
)

// Daemon is the assembled FocusDeck process.
type Daemon struct {
	cfg         Config
	db          *sqlite.DB // nil in local-only mode
	local       *localstore.Store
	watcher     *localstore.Watcher // nil when watching disabled
	hub         *bus.Bus
	coordinator *syncer.Coordinator
	server      *api.Server
}

// New builds every layer from the configuration.
func New(cfg Config) (*Daemon, error) {
	cfg.Metering.Apply()

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	hub := bus.New()

	local, err := localstore.New(cfg.Data.DocumentsDir())
	if err != nil {
		return nil, err
	}
	local.SetNotifier(hub)

	var db *sqlite.DB
	if !cfg.Data.LocalOnly {
		db, err = sqlite.Open(cfg.Data.DatabasePath())
		if err != nil {
			return nil, err
		}
		db.SetNotifier(hub)
	}

	var watcher *localstore.Watcher
	if cfg.Data.WatchLocal {
		watcher, err = localstore.NewWatcher(local, hub)
		if err != nil {
			log.Printf("[daemon] local watcher unavailable: %v", err)
			watcher = nil
		}
	}

	// The nil *sqlite.DB must become a nil interface for the routing
	// services, which select backends by checking against nil.
	var durableRecords domain.RecordStore
	var durableAccounts domain.AccountStore
	if db != nil {
		durableRecords = db
		durableAccounts = db
	}

	accountStore := accounts.New(durableAccounts, local)
	ledgerSvc := ledger.New(accountStore)
	gateway := meter.New(ledgerSvc)
	coordinator := syncer.New(records.New(durableRecords, local), hub)
	ledgerSvc.SetBalanceHook(coordinator.RefreshBalance)

	server := api.NewServer(accountStore, ledgerSvc, gateway, coordinator, hub)
	if cfg.API.Metrics {
		server.EnableMetrics()
	}

	return &Daemon{
		cfg:         cfg,
		db:          db,
		local:       local,
		watcher:     watcher,
		hub:         hub,
		coordinator: coordinator,
		server:      server,
	}, nil
}

// SetModel wires an assistant backend, enabling the chat endpoint.
func (d *Daemon) SetModel(model domain.ModelClient) {
	d.server.SetDispatcher(agent.New(model, d.coordinator))
}

// Server returns the API server (for tests and embedding).
func (d *Daemon) Server() *api.Server { return d.server }

// Run serves HTTP until ctx is cancelled, then shuts down cleanly.
func (d *Daemon) Run(ctx context.Context) error {
	if d.watcher != nil {
		d.watcher.Start()
	}

	srv := &http.Server{
		Addr:    d.cfg.API.Addr(),
		Handler: d.server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s", d.cfg.API.Addr())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[daemon] shutdown: %v", err)
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			d.close()
			return err
		}
	}
	d.close()
	return nil
}

func (d *Daemon) close() {
	d.coordinator.Close()
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.db != nil {
		d.db.Close()
	}
}
