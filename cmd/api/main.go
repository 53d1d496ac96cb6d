package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"deligma/internal/admin"
	"deligma/internal/server"
	"deligma/internal/walloffame"
	"deligma/pkg/config"
	"deligma/pkg/logger"
	"deligma/pkg/migrate"
	"deligma/pkg/persistence"
	"deligma/pkg/storage"
	"deligma/pkg/telemetry"
)

const serviceName = "api"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment", nil)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.WarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App.Env, logg)
	if err != nil {
		logg.Error(ctx, "failed to set up telemetry", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logg.Error(context.Background(), "error flushing telemetry", err)
		}
	}()

	db, err := persistence.Open(cfg.DB)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, db.SQL()); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	images, err := storage.NewDisk(filepath.Join(cfg.Uploads.Dir, "muro_fama"))
	if err != nil {
		logg.Error(ctx, "failed to prepare upload directory", err)
		os.Exit(1)
	}

	router := server.NewRouter(server.Deps{
		Config:  cfg,
		Logger:  logg,
		DB:      db,
		Members: walloffame.NewStore(db),
		Admins:  admin.NewService(db, cfg.JWT, cfg.RateLimit),
		Images:  images,
		Metrics: tel.MetricsHandler(),
	})

	addr := ":" + cfg.App.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.TimeoutHandler(router, cfg.App.Timeout, `{"success":false,"message":"Tiempo de espera agotado"}`),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(context.Background(), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logg.Error(context.Background(), "graceful shutdown failed", err)
		}
	}
}
