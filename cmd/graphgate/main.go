// Command graphgate runs the tool-calling gateway: an HTTP endpoint that
// exposes a remote graph database's query API to LLM agents over JSON-RPC,
// behind session authentication, rate limiting, query validation, and
// response shaping.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/graphgate/graphgate/config"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/internal/logctx"
	"github.com/graphgate/graphgate/metrics"
	"github.com/graphgate/graphgate/records/postgres"
	"github.com/graphgate/graphgate/server"
	"github.com/graphgate/graphgate/storage"
	memorystorage "github.com/graphgate/graphgate/storage/memory"
	redisstorage "github.com/graphgate/graphgate/storage/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gateway exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := slog.New(logctx.NewHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	slog.SetDefault(log)

	kv, err := newKV(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	if cfg.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required: caller and connection records live in Postgres")
	}
	rec, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer rec.Close()
	if err := rec.EnsureSchema(ctx); err != nil {
		return err
	}

	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return err
	}

	client := graph.NewClient(
		graph.WithTimeout(cfg.QueryTimeout),
		graph.WithLogger(log),
	)

	srv := server.New([]byte(cfg.EncryptionKey), kv, rec,
		server.WithLogger(log),
		server.WithMetrics(m),
		server.WithGraphClient(client),
		server.WithRateLimit(cfg.RateLimitMax, cfg.RateLimitWindowSeconds),
		server.WithTokenBudget(cfg.TokenBudget),
		server.WithSchemaCacheTTL(cfg.SchemaCacheTTL),
		server.WithSessionTTL(cfg.SessionTTL),
	)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("gateway listening", slog.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("metrics listening", slog.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return httpServer.Shutdown(shutdownCtx)
}

// newKV selects the cross-request state backend: Redis when configured,
// in-process memory otherwise.
func newKV(cfg *config.Config) (storage.KV, error) {
	if cfg.RedisAddr == "" {
		return memorystorage.New(memorystorage.DefaultMaxItems)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return redisstorage.New(redisstorage.Config{Client: client})
}
