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

	"github.com/IgorGrieder/link-redirector/internal/config"
	"github.com/IgorGrieder/link-redirector/internal/events"
	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"
	"github.com/IgorGrieder/link-redirector/internal/infrastructure/telemetry"
	"github.com/IgorGrieder/link-redirector/internal/processing/links"
	"github.com/IgorGrieder/link-redirector/internal/storage"
	httpTransport "github.com/IgorGrieder/link-redirector/internal/transport/http"
	"go.uber.org/zap"
)

// healthKey is probed by /health; absent is the expected answer.
const healthKey = "__health__"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
	)
	if cfg.Security.AuthToken == "" {
		logger.Warn("AUTH_TOKEN is empty, mutations and details will be refused")
	}
	if cfg.IsProduction() && cfg.Store.Backend == config.BackendMemory {
		logger.Warn("In-memory store in production, links are lost on restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.InitPropagator()
	var shutdownTracer func(context.Context) error
	if cfg.OTel.Enabled {
		shutdownTracer, err = telemetry.InitTracer(ctx, telemetry.Options{
			Endpoint:       cfg.OTel.Endpoint,
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Env,
			SampleRatio:    cfg.OTel.SampleRatio,
		})
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			logger.Info("OpenTelemetry tracer initialized", zap.String("endpoint", cfg.OTel.Endpoint))
		}
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.close()

	var janitor *storage.Janitor
	if store.purger != nil {
		janitor = storage.StartJanitor(store.purger, storage.JanitorOptions{Interval: cfg.Store.PurgeInterval})
	}

	serviceOpts := links.ServiceOptions{
		AsyncEvents:      cfg.Links.AsyncEvents,
		ViewWriteTimeout: cfg.Links.ViewWriteTimeout,
		RejectSelfHost:   cfg.Links.RejectSelfHost,
	}
	var publisher *events.KafkaPublisher
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.LinkTopic, cfg.Kafka.ClientID)
		serviceOpts.Publisher = publisher
		logger.Info("Publishing link events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.LinkTopic),
		)
	}

	repo := links.NewRepository(store.kv, links.RepositoryOptions{
		KeyPrefix: cfg.Store.KeyPrefix,
		TTLHints:  cfg.Store.TTLHints,
		TTLGrace:  cfg.Store.TTLGrace,
	})
	linkSvc := links.NewService(repo, serviceOpts)

	routerOpts := httpTransport.DefaultRouterOptions()
	routerOpts.HealthCheck = func(ctx context.Context) error {
		_, err := store.kv.Get(ctx, cfg.Store.KeyPrefix+healthKey)
		if errors.Is(err, links.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	if cfg.RateLimit.Enabled {
		routerOpts.RateLimiter = store.limiter
	}
	router := httpTransport.NewRouter(cfg, linkSvc, routerOpts)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("address", server.Addr),
			zap.String("store", cfg.Store.Backend),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	// Pending view increments still need the store.
	linkSvc.Wait()
	if janitor != nil {
		if err := janitor.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Janitor did not stop in time", zap.Error(err))
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}
	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}

	logger.Info("Server stopped gracefully")
}
