// cmd/funnel-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"solar-funnel/internal/api"
	"solar-funnel/internal/clients/backend"
	"solar-funnel/internal/clients/proposal"
	"solar-funnel/internal/common/config"
	"solar-funnel/internal/common/database"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/common/observability"
	"solar-funnel/internal/funnel/availability"
	"solar-funnel/internal/funnel/estimate"
	"solar-funnel/internal/funnel/session"
	"solar-funnel/internal/funnel/store"
	"solar-funnel/internal/funnel/submission"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// openStore connects the configured answer store backend. The returned
// function pings it for readiness; closer releases the connection.
func openStore(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (store.Backend, func(context.Context) error, func() error) {
	switch cfg.Store.Backend {
	case "postgres":
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				return err
			}
			return pg.EnsureSchema(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		zapLog.Info("PostgreSQL connected successfully")
		return store.NewPostgresBackend(pg.DB), pg.Ping, pg.Close

	default:
		var rdb *database.RedisClient
		err := retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		zapLog.Info("Redis connected successfully")
		return store.NewRedisBackend(rdb.Client, cfg.Store.KeyPrefix), rdb.Ping, rdb.Close
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting funnel server...", zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()
	answers, ping, closeStore := openStore(ctx, cfg, zapLog)
	defer closeStore()

	grid, err := availability.NewGrid(cfg.Scheduling)
	if err != nil {
		zapLog.Fatal("invalid scheduling grid", zap.Error(err))
	}

	backendClient := backend.New(cfg.Backend, log)
	resolver := availability.NewResolver(
		grid,
		backendClient,
		time.Duration(cfg.Scheduling.LeadTimeMinutes)*time.Minute,
		cfg.Scheduling.SearchHorizonDays,
		log,
	)
	leads := submission.NewLeads(backendClient, log)

	srv := api.New(api.Dependencies{
		Sessions:      session.NewManager(answers, log),
		Proposals:     proposal.New(cfg.Proposal, log),
		Calculator:    estimate.NewCalculator(log),
		Resolver:      resolver,
		Bookings:      submission.NewBookings(backendClient, resolver, cfg.Branding, log),
		Leads:         leads,
		Branding:      cfg.Branding,
		Server:        cfg.Server,
		Ready:         ping,
		Observability: obs,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handlers.LoggingHandler(os.Stdout, srv.Handler()),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Funnel API listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("Funnel API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}
	leads.Wait()

	zapLog.Info("Funnel server stopped gracefully")
}
