/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loan engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load optional YAML configuration (rounding / product defaults)
  3. Initialize SQLite store
  4. Wire the loan service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: loans.db)
           Use ":memory:" for in-memory database
  -config  Path to YAML configuration file (optional)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/loans.db"

  # Run with in-memory database and a rounding config
  ./server -db=":memory:" -config=./config.yml

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/config"
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "loans.db", "SQLite database path")
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Configuration is optional; without it the engine falls back to
	// half-even rounding at 16 significant digits.
	mc := engine.DefaultMathContext
	if *configPath != "" {
		cfg, err := config.LoadConfiguration(*configPath)
		if err != nil {
			logger.Fatal("failed to load configuration", zap.String("path", *configPath), zap.Error(err))
		}
		mc = cfg.MathContext()
		logger.Info("configuration loaded",
			zap.String("path", *configPath),
			zap.String("rounding", string(mc.Mode)),
			zap.Int32("precision", mc.Precision))
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("path", *dbPath), zap.Error(err))
	}
	defer store.Close()

	// Wire service and handler
	service := loan.NewService(store, mc, logger)
	handler := api.NewHandler(service, logger)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
