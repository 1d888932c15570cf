package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/api"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/config"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/coordinator"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/live"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/observability"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/signal"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/status"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/store"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/syncer"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.TenantID == "" {
		log.Fatal("TENANT_ID is required; every record and queue entry is tenant scoped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize telemetry
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("rms-syncd", serviceVersion))
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	// Initialize database and repositories
	var recordRepo store.RecordRepo
	var queueRepo store.QueueRepo
	var conflictRepo store.ConflictRepo
	if cfg.UsePostgres() {
		observability.Info("Using PostgreSQL store")
		db, err := store.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL store: %v", err)
		}
		defer db.Close()
		recordRepo = store.NewRecordRepositoryPostgres(db)
		queueRepo = store.NewQueueRepositoryPostgres(db)
		conflictRepo = store.NewConflictRepositoryPostgres(db)
	} else {
		observability.Info("Using SQLite store")
		db, err := store.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite store: %v", err)
		}
		defer db.Close()
		recordRepo = store.NewRecordRepository(db)
		queueRepo = store.NewQueueRepository(db)
		conflictRepo = store.NewConflictRepository(db)
	}

	localStore := store.NewLocalStore(cfg.TenantID, recordRepo, queueRepo)

	// Remote API client
	remote := api.NewClient(api.ClientOptions{
		BaseURL:      cfg.Remote.BaseURL,
		TenantID:     cfg.TenantID,
		APIKey:       cfg.Remote.APIKey,
		APIKeyHeader: cfg.Remote.APIKeyHeader,
		UserAgent:    "rms-syncd/" + serviceVersion,
	})

	syncMetrics, err := observability.NewSyncMetrics()
	if err != nil {
		observability.Warnf("sync metrics disabled: %v", err)
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		observability.Warnf("http metrics disabled: %v", err)
	}

	// Cross-process change signaling
	hub := signal.NewHub()
	go hub.Run(ctx)

	// One view per watched table; live updates and the fallback poller
	// refresh through these so stale responses never win.
	views := make(map[string]*coordinator.TableView, len(cfg.Live.Tables))
	for _, table := range cfg.Live.Tables {
		views[table] = coordinator.NewTableView(coordinator.ViewOptions{
			Table:    table,
			Remote:   remote,
			Store:    localStore,
			Debounce: cfg.Debounce(),
		})
	}
	refreshTable := func(table string) {
		if v, ok := views[table]; ok {
			if err := v.Refresh(ctx); err != nil {
				observability.Warnf("silent refresh of %s failed: %v", table, err)
			}
		}
	}
	refreshAll := func() {
		for table := range views {
			refreshTable(table)
		}
	}

	// Sync queue processor
	processor := syncer.NewProcessor(syncer.ProcessorOptions{
		TenantID:      cfg.TenantID,
		Store:         localStore,
		Queue:         queueRepo,
		Conflicts:     conflictRepo,
		Remote:        remote,
		DrainInterval: cfg.DrainInterval(),
		MaxAttempts:   cfg.Sync.MaxAttempts,
		Metrics:       syncMetrics,
		OnConflict: func(c models.Conflict) {
			observability.WithFields(map[string]interface{}{
				"table":    c.Table,
				"entityId": c.EntityID,
				"kind":     string(c.Kind),
			}).Warn("sync conflict surfaced")
			hub.Publish(signal.Signal{TenantID: c.TenantID, Table: c.Table, Origin: "syncer"})
		},
		OnPushed: func(table string) {
			hub.Publish(signal.Signal{TenantID: cfg.TenantID, Table: table, Origin: "syncer"})
		},
	})
	go processor.Run(ctx)

	queue := syncer.NewQueue(cfg.TenantID, queueRepo, processor.Kick)

	// Connectivity prober drives the offline/online transitions
	prober := syncer.NewProber(remote, processor, cfg.ProbeInterval())
	go prober.Run(ctx)

	// Live update channel with polling fallback
	channel := live.NewChannel(live.Options{
		URL:           cfg.Remote.WebsocketURL,
		APIKey:        cfg.Remote.APIKey,
		APIKeyHeader:  cfg.Remote.APIKeyHeader,
		ConfirmWindow: cfg.ConfirmWindow(),
		PollInterval:  cfg.PollInterval(),
		Refresh:       refreshAll,
		OnStatus: func(s live.Status) {
			observability.Infof("live channel %s", s)
		},
	})
	// Live changes only publish into the hub; the subscriber below performs
	// the single silent reload for every origin but its own
	unsubscribe := channel.Subscribe(cfg.TenantID, func(ev models.ChangeEvent) {
		hub.Publish(signal.Signal{TenantID: cfg.TenantID, Table: ev.Table, Origin: "live"})
	})
	defer unsubscribe()

	stopSignals := hub.Subscribe(cfg.TenantID, "local", cfg.Live.Tables, func(sig signal.Signal) {
		refreshTable(sig.Table)
	})
	defer stopSignals()

	// Status server
	server := status.NewServer(status.Options{
		TenantID:     cfg.TenantID,
		Queue:        queue,
		Processor:    processor,
		Conflicts:    conflictRepo,
		Hub:          hub,
		LiveStatus:   func() string { return string(channel.Status()) },
		APIKey:       cfg.Remote.APIKey,
		APIKeyHeader: cfg.Remote.APIKeyHeader,
		HTTPMetrics:  httpMetrics,
	})

	srv := &http.Server{
		Addr:         cfg.StatusAddress,
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		observability.Infof("rms-syncd starting on %s (tenant %s)", cfg.StatusAddress, cfg.TenantID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Status server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	ossignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		observability.Errorf("Status server forced to shutdown: %v", err)
	}
	for _, v := range views {
		v.Close()
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		observability.Errorf("Telemetry shutdown: %v", err)
	}

	observability.Info("Stopped")
}
