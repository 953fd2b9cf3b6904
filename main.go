package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	// Adapters register their dialects from init().
	_ "github.com/querylens/querylens-engine/pkg/adapters/datasource/mssql"
	_ "github.com/querylens/querylens-engine/pkg/adapters/datasource/postgres"
	_ "github.com/querylens/querylens-engine/pkg/adapters/datasource/sqlite"

	"github.com/querylens/querylens-engine/pkg/config"
	"github.com/querylens/querylens-engine/pkg/lifecycle"
	"github.com/querylens/querylens-engine/pkg/logging"
	"github.com/querylens/querylens-engine/pkg/mcp"
	"github.com/querylens/querylens-engine/pkg/mcp/tools"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownGrace = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("QUERYLENS_CONFIG"), "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "querylens-engine: %v\n", err)
		os.Exit(2)
	}

	logger := logging.MustNew(cfg.Debug)
	defer logger.Sync() //nolint:errcheck

	if cfg.Debug {
		logger.Debug("effective configuration", zap.String("config", cfg.Redacted()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coordinator, err := lifecycle.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		os.Exit(3)
	}
	coordinator.Start(ctx)

	srv := mcp.NewServer("querylens-engine", Version, logger)
	tools.RegisterAll(srv.MCP(), &tools.Deps{
		Coordinator: coordinator,
		Config:      cfg,
		Logger:      logger,
	})

	// ServeStdio returns when the client disconnects; the signal context
	// covers direct termination.
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		logger.Info("termination signal received")
	}

	coordinator.Shutdown(shutdownGrace)
	if err != nil {
		logger.Error("stdio transport failed", zap.Error(err))
		os.Exit(1)
	}
}
