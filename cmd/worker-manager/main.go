// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"credit-risk/internal/artifact"
	"credit-risk/internal/common/camunda"
	"credit-risk/internal/common/config"
	"credit-risk/internal/common/database"
	"credit-risk/internal/common/logger"
	"credit-risk/internal/common/observability"
	"credit-risk/internal/decisionlog"
	"credit-risk/internal/scoring"
	"credit-risk/pkg/registry"

	scr "credit-risk/internal/workers/risk/score-credit-risk"
)

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

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// The bundle is loaded before anything else connects: a worker that cannot score
	// must not take jobs.
	holder := artifact.NewHolder(cfg.Model.Dir, cfg.Model.Version, artifact.Options{
		ONNXLibraryPath: cfg.Model.ONNXLibraryPath,
	}, log)
	bundle, err := holder.Acquire()
	if err != nil {
		zapLog.Fatal("model bundle unavailable", zap.Error(err), zap.String("dir", cfg.Model.Dir))
	}
	defer holder.Close()

	pipeline, err := applyCalibrationOverride(bundle.Pipeline, cfg.Scoring.Calibration)
	if err != nil {
		zapLog.Fatal("calibration override rejected", zap.Error(err))
	}

	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err), zap.String("path", cfg.Registry.Path))
	}
	activity, err := reg.FindByTaskType(scr.TaskType)
	if err != nil {
		zapLog.Fatal("activity registry has no scoring activity", zap.Error(err))
	}

	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig: &camunda.RetryConfig{
			MaxRetries: 10,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	deps := scr.Dependencies{Scorer: pipeline, Observability: obs}

	if cfg.Scoring.CacheTTL > 0 {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		deps.Cache = redis
		zapLog.Info("Redis connected successfully")
	}

	if cfg.Scoring.DecisionLogEnabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		store := decisionlog.NewPostgresStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("decision log schema migration failed", zap.Error(err))
		}
		deps.Decisions = store
		zapLog.Info("PostgreSQL connected successfully")
	}

	wcfg := config.GetWorkerConfig(cfg, scr.TaskType)
	handler, err := scr.NewHandler(&scr.Config{
		Timeout:            config.GetDuration(wcfg.Timeout),
		CacheTTL:           cfg.Scoring.CacheTTLDuration(),
		DecisionLogEnabled: cfg.Scoring.DecisionLogEnabled,
		InputSchema:        activity.InputSchema,
	}, deps, log)
	if err != nil {
		zapLog.Fatal("failed to create score-credit-risk handler", zap.Error(err))
	}
	scoringWorker := camunda.StartWorker(zeebe.GetClient(), scr.TaskType, wcfg, handler, log)

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !holder.Ready() {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "model not loaded"})
			return
		}
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "broker unreachable"})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status":       "ready",
			"modelVersion": pipeline.Version(),
			"time":         time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scoringWorker != nil {
		scoringWorker.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// applyCalibrationOverride swaps in the configured calibration, if any.
func applyCalibrationOverride(p *scoring.Pipeline, override *scoring.Calibration) (*scoring.Pipeline, error) {
	if override == nil || override.IsZero() {
		return p, nil
	}
	cal, err := scoring.NewCalibrator(*override)
	if err != nil {
		return nil, err
	}
	return p.WithCalibrator(cal), nil
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
