package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-service/internal/app"
	"portfolio-service/internal/config"
	"portfolio-service/internal/logger"

	flag "github.com/spf13/pflag"
)

func main() {
	port := flag.StringP("port", "p", "", "HTTP port, overrides APP_PORT")
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	flag.Parse()

	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", map[string]any{
			"error": err.Error(),
		})
	}
	if *port != "" {
		cfg.AppPort = *port
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if *migrateOnly {
		if err := app.Migrate(ctx, cfg); err != nil {
			logger.Fatal("migration failed", map[string]any{
				"error": err.Error(),
			})
		}
		logger.Info("migrations applied", nil)
		return
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err.Error(),
		})
	}

	go func() {
		if err := application.Run(); err != nil {
			logger.Fatal("http server failed", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	logger.Info("portfolio-service started", map[string]any{
		"port": cfg.AppPort,
	})

	<-ctx.Done()

	logger.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("graceful shutdown failed", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Info("portfolio-service stopped cleanly", nil)
}
