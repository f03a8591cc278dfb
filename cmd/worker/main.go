package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/campaign-targeting/internal/app"
	"github.com/ignite/campaign-targeting/internal/config"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
)

func main() {
	path := flag.String("config", "config/config.yaml", "path to the config file")
	once := flag.Bool("once", false, "run the fleet once and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*path)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, "campaign-targeting-worker"); err != nil {
		logger.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	logger.SetRedactPII(cfg.Logging.Redact())
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if *once {
		summary, err := a.Scheduler.RunNow(ctx)
		if err != nil {
			logger.Error("Fleet run failed", "error", err)
			a.Close()
			os.Exit(1)
		}
		logger.Info("Fleet run complete", "tenants", summary.Tenants, "failed", summary.Failed)
		return
	}

	if err := a.Scheduler.Start(); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	if a.Consumer != nil {
		a.Consumer.Start(ctx)
	}
	logger.Info("Worker running", "interval", cfg.Scheduler.Interval().String(),
		"maxConcurrentTenants", cfg.Scheduler.MaxConcurrentTenants)

	<-ctx.Done()
	logger.Info("Worker shutting down")
}
