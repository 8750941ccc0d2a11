package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/kjannette/papertrade-backend/internal/api"
	"github.com/kjannette/papertrade-backend/internal/app"
	"github.com/kjannette/papertrade-backend/internal/config"
	"github.com/kjannette/papertrade-backend/internal/logging"
)

const banner = `
╔══════════════════════════════════════╗
║    Paper Trading Engine  IN · US     ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Setup(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	log := logging.For("main")

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("Connecting to database %s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Startup failed")
		os.Exit(1)
	}
	defer a.Close()

	// 1. API server
	srv := api.NewServer(a.Engine, a.Markets, a.Runner, a.Pool, api.Options{
		Port:       cfg.APIPort,
		APIKey:     cfg.APIKey,
		CORSOrigin: cfg.CORSAllowOrigin,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("API server error")
			stop()
		}
	}()

	// 2. Strategy scheduler
	a.StartScheduler()

	for _, p := range a.Markets.All() {
		log.Infof("Market %s ready: %s, default balance %s", p.Code, p.Name, p.Money(p.DefaultBalance))
	}
	log.Info("All services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("API shutdown error")
	}
	log.Info("API server closed")
	log.Info("Shutdown complete")
}
