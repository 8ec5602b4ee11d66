package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexus-vision/facesearch-go/config"
	"github.com/nexus-vision/facesearch-go/internal/adapters/callback"
	"github.com/nexus-vision/facesearch-go/internal/adapters/embedding"
	"github.com/nexus-vision/facesearch-go/internal/adapters/faceindex"
	"github.com/nexus-vision/facesearch-go/internal/adapters/objectstore"
	"github.com/nexus-vision/facesearch-go/internal/adapters/queue"
	reaperadapter "github.com/nexus-vision/facesearch-go/internal/adapters/reaper"
	"github.com/nexus-vision/facesearch-go/internal/adapters/searchrunner"
	"github.com/nexus-vision/facesearch-go/internal/core"
	"github.com/nexus-vision/facesearch-go/internal/data"
	"github.com/nexus-vision/facesearch-go/internal/domain/correlation"
	"github.com/nexus-vision/facesearch-go/internal/observability/notify"
	"github.com/nexus-vision/facesearch-go/internal/observability/statsd"
	"github.com/nexus-vision/facesearch-go/internal/service"
)

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// ServiceContainer holds the constructed application services.
type ServiceContainer struct {
	Jobs    *service.JobService
	Metrics *statsd.Client
}

// ServiceDeps groups the infrastructure dependencies for service construction.
type ServiceDeps struct {
	DB     *sql.DB
	Redis  redis.UniversalClient
	Config *config.AppConfig
	Logger *slog.Logger
}

// BuildServices wires repositories, adapters, and services.
func BuildServices(deps ServiceDeps) (ServiceContainer, error) {
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}
	if deps.Redis == nil {
		return ServiceContainer{}, errors.New("redis client is required")
	}
	if deps.Config == nil {
		return ServiceContainer{}, errors.New("app config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metricsClient, err := buildMetricsClient(deps.Config, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	ids, err := correlation.NewUUIDGenerator()
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("init correlation id generator: %w", err)
	}

	repo := data.NewJobRepo(deps.DB, data.RepoConfig{Logger: logger})

	dispatcher, err := queue.NewRedisDispatcher(queue.DispatcherOptions{
		Client:  deps.Redis,
		Queue:   deps.Config.Dispatch.Queue,
		Timeout: deps.Config.Dispatch.Timeout,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create dispatcher: %w", err)
	}

	notifier, err := buildCompletionNotifier(deps.Config, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:       repo,
		Dispatcher: dispatcher,
		IDs:        ids,
		Worker:     deps.Config.Worker,
		Logger:     logger,
		Notifier:   notifier,
		Metrics:    sinkOrNil(metricsClient),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create job service: %w", err)
	}

	return ServiceContainer{
		Jobs:    jobs,
		Metrics: metricsClient,
	}, nil
}

// buildMetricsClient constructs the StatsD client, disabled when unconfigured.
func buildMetricsClient(cfg *config.AppConfig, logger *slog.Logger) (*statsd.Client, error) {
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.Enabled,
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  "facesearch",
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create statsd client: %w", err)
	}
	return client, nil
}

//nolint:ireturn // notifier selection happens at runtime based on configuration.
func buildCompletionNotifier(cfg *config.AppConfig, logger *slog.Logger) (core.CompletionNotifier, error) {
	if !cfg.Observability.Webhook.Enabled {
		return notify.NoopNotifier{}, nil
	}

	hook, err := notify.NewWebhook(notify.WebhookConfig{
		URL:        cfg.Observability.Webhook.URL,
		Timeout:    cfg.Observability.Webhook.Timeout,
		RetryLimit: cfg.Observability.Webhook.RetryLimit,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create completion webhook: %w", err)
	}
	return hook, nil
}

//nolint:ireturn // a nil-capable Sink keeps metrics optional downstream.
func sinkOrNil(client *statsd.Client) statsd.Sink {
	if client == nil || !client.Enabled() {
		return nil
	}
	return client
}

// buildSearchRunner wires the worker pipeline adapters.
func buildSearchRunner(ctx context.Context, deps *serviceStartupDeps) (*searchrunner.Runner, error) {
	cfg := deps.cfg.Config
	logger := deps.logger

	consumer, err := queue.NewRedisConsumer(queue.ConsumerOptions{
		Client:      deps.cfg.Redis,
		Queue:       cfg.Dispatch.Queue,
		PollTimeout: cfg.Worker.PollTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create queue consumer: %w", err)
	}

	resolver, err := objectstore.NewS3Resolver(ctx, objectstore.ResolverOptions{
		Region:   cfg.Worker.S3Region,
		Endpoint: cfg.Worker.S3Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact resolver: %w", err)
	}

	embedder, err := embedding.NewClient(embedding.Config{
		BaseURL: cfg.Worker.EmbedderURL,
		Timeout: cfg.Worker.JobTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder client: %w", err)
	}

	index, err := faceindex.NewClient(faceindex.Config{
		BaseURL: cfg.Worker.IndexURL,
		Timeout: cfg.Worker.JobTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create face index client: %w", err)
	}

	reporter, err := callback.NewReporter(callback.Config{
		CallbackURL: cfg.Worker.CallbackURL,
		Token:       cfg.HTTP.CallbackToken,
		RetryLimit:  3,
	})
	if err != nil {
		return nil, fmt.Errorf("create callback reporter: %w", err)
	}

	return searchrunner.NewRunner(searchrunner.RunnerOptions{
		Source:   consumer,
		Resolver: resolver,
		Embedder: embedder,
		Index:    index,
		Reporter: reporter,
		Config:   cfg.Worker,
		Logger:   logger,
		Metrics:  sinkOrNil(deps.cfg.Services.Metrics),
	})
}

// ServiceOrchestrationConfig groups everything RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Redis    redis.UniversalClient
	Logger   *slog.Logger
}

// serviceStartupDeps carries shared state while starting services.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		DB:       deps.cfg.DB,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)

	return done
}

func newWorkerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeWorker,
		name: "search worker",
		start: func(ctx context.Context) error {
			runner, err := buildSearchRunner(ctx, deps)
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			runner, err := reaperadapter.NewRunner(reaperadapter.RunnerOptions{
				DB:      deps.cfg.DB,
				Config:  deps.cfg.Config.Reaper,
				Logger:  deps.logger,
				Metrics: sinkOrNil(deps.cfg.Services.Metrics),
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	return []backgroundService{
		newWorkerBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, len(enabledServices)+1)

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownDeps{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		logger:      logger,
		backgrounds: result.Background,
	})
}

// shutdownDeps contains dependencies for graceful shutdown.
type shutdownDeps struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(deps shutdownDeps) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		deps.logger.Info("shutting down services...")
		deps.cancel() // Cancel service context before waiting
		return gracefulStop(deps)
	case err := <-deps.errCh:
		deps.logger.Error("service error", "error", err)
		deps.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(deps); stopErr != nil {
			deps.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(deps shutdownDeps) error {
	if deps.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  deps.httpServer,
			Logger:  deps.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range deps.backgrounds {
		waitForService(svc.done, svc.name, deps.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
