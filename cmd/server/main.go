/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, optional .env file)
  2. Initialize SQLite store
  3. Wire domain components (periods, loans, engine, settlements, export,
     approvals)
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  All config via environment variables; see config/config.go. Key ones:
    PORT        HTTP server port (default: 8080)
    DB_PATH     SQLite database path (default: payroll.db)
                Use ":memory:" for an in-memory database
    LOG_LEVEL   zap log level (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/settlement"
	"github.com/warp/payroll-engine/store/sqlite"
	"github.com/warp/payroll-engine/wps"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Wire domain components
	periods := payroll.NewPeriodManager(store, store, logger)
	loans := payroll.NewLoanTracker(store, logger)
	attendance := payroll.NewAttendanceFeed(store, periods, logger)
	engine := &payroll.Engine{
		Components: store,
		Catalog:    store,
		Attendance: store,
		Results:    store,
		Loans:      loans,
		Periods:    periods,
		Directory:  store,
		LeaveTypes: store,
		Settings:   cfg.Org,
		Logger:     logger,
	}
	settlements := settlement.NewCalculator(store, store, store, cfg.Org, logger)
	exporter := wps.NewExporter(store, store, cfg.Org, logger)

	// Approved change requests only signal downstream ingestion; the
	// attendance feed stays the single write path for summaries.
	sink := approval.EventSinkFunc(func(_ context.Context, e approval.Event) error {
		logger.Info("change request approved",
			zap.String("request", e.RequestID),
			zap.String("type", string(e.Type)),
			zap.String("reference", e.ReferenceID),
			zap.String("employee", string(e.SubjectEmployee)))
		return nil
	})
	approvals, err := approval.NewCoordinator(context.Background(), store, sink, logger)
	if err != nil {
		logger.Fatal("failed to replay approval journal", zap.Error(err))
	}

	handler := &api.Handler{
		Master:          store,
		Periods:         periods,
		Engine:          engine,
		Loans:           loans,
		Results:         store,
		Attendance:      attendance,
		Settlements:     settlements,
		SettlementStore: store,
		Exporter:        exporter,
		Approvals:       approvals,
		Logger:          logger,
	}

	scheduler := api.NewPeriodScheduler(periods, logger)
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath))
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

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	return c.Build()
}
