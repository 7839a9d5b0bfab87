package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"voicehub-platform/internal/audit"
	"voicehub-platform/internal/auth"
	"voicehub-platform/internal/cache"
	"voicehub-platform/internal/calls"
	"voicehub-platform/internal/config"
	"voicehub-platform/internal/crm"
	"voicehub-platform/internal/enrich"
	"voicehub-platform/internal/ingest"
	"voicehub-platform/internal/lookup"
	"voicehub-platform/internal/maintenance"
	"voicehub-platform/internal/outbound"
	"voicehub-platform/internal/reporting"
	"voicehub-platform/internal/tasks"
	"voicehub-platform/internal/tenants"
	"voicehub-platform/internal/tokenvault"
	"voicehub-platform/pkg/logger"
	"voicehub-platform/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Stores
	callRepo := calls.NewSQLRepo(db)
	tenantRepo := tenants.NewSQLRepo(db)
	auditSvc := audit.NewService(audit.NewSQLRepo(db))
	store := cache.NewRedisStore(rdb)
	vault := tokenvault.NewManager(tokenvault.NewSQLRepo(db))
	webhookRepo := outbound.NewSQLRepo(db)
	syncLogs := crm.NewSQLSyncLogStore(db)

	// Fan-out machinery
	providers := crm.ProviderConfigs(cfg.OAuth)
	syncer := crm.NewSyncer(vault, syncLogs, crm.Connectors(providers)...)
	dispatcher := outbound.NewDispatcher(webhookRepo)
	lookupClient := lookup.NewClient(cfg.Lookup, log)
	pipeline := enrich.NewPipeline(
		callRepo,
		tenantRepo,
		enrich.NewClassifier(cfg.LLM),
		dispatcher,
		store,
		rdb,
		[]enrich.Addon{&enrich.PhoneInsightsAddon{Lookup: lookupClient}},
		log,
	)

	runner := tasks.NewRunner(log)
	defer runner.Close()

	ingestSvc := ingest.NewService(
		callRepo, auditSvc, store, lookupClient, runner,
		dispatcher, syncer, pipeline, log,
	)

	sweeper := maintenance.NewSweeper(callRepo, cfg.Maintenance, log)
	go sweeper.Run(rootCtx)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		authMW:      auth.RequireAccessToken(authManager),
		db:          db,
		ingest:      ingest.Handler{Tenants: tenantRepo, Service: ingestSvc, Audit: auditSvc},
		connect:     crm.ConnectHandlers{Vault: vault, Logs: syncLogs, Providers: providers, DashboardURL: cfg.App.DashboardURL},
		webhooks:    outbound.Handlers{Repo: webhookRepo},
		reporting:   reporting.Handlers{Service: reporting.NewService(callRepo, store, log)},
		maintenance: maintenance.Handler{Sweeper: sweeper},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Let in-flight background jobs (fan-out, enrichment) land before exit.
	runner.Close()
}
