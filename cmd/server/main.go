package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/realtime-notify/internal/api"
	"github.com/notifyhub/realtime-notify/internal/config"
	"github.com/notifyhub/realtime-notify/internal/db"
	"github.com/notifyhub/realtime-notify/internal/domain"
	"github.com/notifyhub/realtime-notify/internal/metrics"
	"github.com/notifyhub/realtime-notify/internal/queue"
	"github.com/notifyhub/realtime-notify/internal/service"
	"github.com/notifyhub/realtime-notify/internal/storage"
	"github.com/notifyhub/realtime-notify/internal/ws"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- snapshot store ----
	// DATABASE_URL selects PostgreSQL; otherwise snapshots go to local files.
	ctx := context.Background()
	var store storage.SnapshotStore
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL, "migrations"); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
		store = storage.NewPgSnapshotStore(pool)
	} else {
		fileStore, err := storage.NewFileStore(cfg.SnapshotDir)
		if err != nil {
			logger.Fatal("failed to create snapshot dir", zap.Error(err))
		}
		store = fileStore
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	q, err := queue.New[domain.Notification](queue.Options{
		MaxSize:            cfg.QueueMaxSize,
		DefaultTTL:         cfg.DefaultTTL,
		PersistenceKey:     cfg.PersistenceKey,
		DisableAutoPersist: !cfg.AutoPersist,
		PersistInterval:    cfg.PersistInterval,
		SweepInterval:      cfg.SweepInterval,
	}, store, logger)
	if err != nil {
		logger.Fatal("failed to create queue", zap.Error(err))
	}

	svc := service.NewNotificationService(q, logger, m.ServiceHooks(), cfg.ReconcileInterval)

	// ---- background reconciler ----
	// Context for all background goroutines; cancelled on shutdown signal.
	reconcileCtx, cancelReconciler := context.WithCancel(ctx)
	defer cancelReconciler()
	go svc.Run(reconcileCtx)

	// ---- HTTP server ----
	wsHandler := ws.NewHandler(svc, logger, cfg.EventRateLimit)
	router := api.NewRouter(svc, wsHandler, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests and close live channels.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop the reconciler.
	cancelReconciler()

	// 3. Stop the queue's sweep/persist loops and take the final snapshot.
	q.Close()

	logger.Info("server stopped cleanly")
}
