package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/campaign-targeting/internal/api"
	"github.com/ignite/campaign-targeting/internal/app"
	"github.com/ignite/campaign-targeting/internal/config"
	"github.com/ignite/campaign-targeting/internal/history"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %w", addr, err)
	}
	return ln.Close()
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	logger.Sync()
	os.Exit(1)
}

func main() {
	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		fatal("Failed to load config", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, "campaign-targeting"); err != nil {
		fatal("Failed to initialize logger", err)
	}
	logger.SetRedactPII(cfg.Logging.Redact())
	defer logger.Sync()

	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		fatal("Pre-flight check failed", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fatal("Failed to initialize services", err)
	}
	defer a.Close()

	health := api.NewHealthChecker(cfg.Server.Version).
		Register("warehouse", a.Warehouse, true).
		Register("documentStore", a.Store, true)
	if a.Redis != nil {
		health.Register("redis", api.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}), false)
	} else {
		health.Register("redis", nil, false)
	}
	if a.LockDB != nil {
		health.Register("lockDatabase", api.PingFunc(a.LockDB.PingContext), false)
	}
	if a.Reporter != nil {
		health.Register("reports", a.Reporter, false)
	} else {
		health.Register("reports", nil, false)
	}

	server := api.NewServer(cfg.Server, api.RouteConfig{
		Handlers: api.NewHandlers(a.Tenants, a.Campaigns, a.Scheduler),
		Health:   health,
		Hooks:    history.NewHandler(a.Recorder).Routes(),
	})

	if cfg.Scheduler.Enabled {
		if err := a.Scheduler.Start(); err != nil {
			fatal("Failed to start scheduler", err)
		}
	}
	if a.Consumer != nil {
		a.Consumer.Start(ctx)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting server", "addr", cfg.Server.Addr(), "version", cfg.Server.Version,
			"scheduler", cfg.Scheduler.Enabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("Server error", err)
		}
	}()

	<-done
	logger.Info("Shutting down")

	// Stop background work before draining requests.
	cancel()
	a.Scheduler.Stop()
	if a.Consumer != nil {
		a.Consumer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
