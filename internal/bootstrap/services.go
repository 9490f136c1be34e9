package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	jobshield "github.com/jobshield/jobshield"
	"github.com/jobshield/jobshield/config"
	redisadapters "github.com/jobshield/jobshield/internal/adapters/redis"
	"github.com/jobshield/jobshield/internal/core"
	"github.com/jobshield/jobshield/internal/data"
	"github.com/jobshield/jobshield/internal/domain/rules"
	"github.com/jobshield/jobshield/internal/observability/statsd"
	"github.com/jobshield/jobshield/internal/service"
)

// queueStatsInterval is how often the apply service emits queue depth gauges.
const queueStatsInterval = 30 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Tasks         *service.TaskService
	Runs          *service.RunService
	Sessions      *service.SessionService
	Scorer        *service.ScorerService
	ScorerWorker  *service.ScorerWorker
	Reaper        *service.ReaperService
	Postings      core.JobPostingRepository
	Users         core.UserRepository
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// Sink returns the metrics sink as an interface, keeping a nil client nil.
//
//nolint:ireturn // callers take the statsd.Sink interface.
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB           *sql.DB
	Redis        redis.UniversalClient
	TaskRepo     *data.TaskRepo
	RunRepo      *data.RunRepo
	ObsEventRepo *data.ObservabilityEventRepo
	PostingRepo  *data.JobPostingRepo
	UserRepo     *data.UserRepo
	SessionStore *redisadapters.SessionStore
	Locker       *redisadapters.Locker
}

// buildObservability configures the metrics adapter.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "jobshield",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	repos := &serviceRepositories{
		DB:           db,
		Redis:        redisClient,
		TaskRepo:     data.NewTaskRepo(db, data.RepoConfig{Logger: logger}),
		RunRepo:      data.NewRunRepo(db, data.RepoConfig{Logger: logger}),
		ObsEventRepo: data.NewObservabilityEventRepo(db, data.RepoConfig{Logger: logger}),
		PostingRepo:  data.NewJobPostingRepo(db, data.RepoConfig{Logger: logger}),
		UserRepo:     data.NewUserRepo(db, data.RepoConfig{Logger: logger}),
	}
	if redisClient != nil {
		repos.SessionStore = redisadapters.NewSessionStore(redisClient)
		repos.Locker = redisadapters.NewLocker(redisClient)
	}
	return repos
}

// LoadRuleTable loads the configured rule table, falling back to the table
// embedded in the binary when RULE_TABLE_PATH is unset.
func LoadRuleTable(cfg config.ScoringConfig, logger *slog.Logger) (*rules.Table, error) {
	if cfg.RuleTablePath != "" {
		table, err := rules.LoadTable(cfg.RuleTablePath)
		if err != nil {
			return nil, fmt.Errorf("load rule table %s: %w", cfg.RuleTablePath, err)
		}
		if logger != nil {
			logger.Info("rule table loaded", "path", cfg.RuleTablePath, "rules", table.Len())
		}
		return table, nil
	}

	table, err := rules.ParseTable(jobshield.DefaultRuleTable)
	if err != nil {
		return nil, fmt.Errorf("parse embedded rule table: %w", err)
	}
	if logger != nil {
		logger.Info("embedded rule table loaded", "rules", table.Len())
	}
	return table, nil
}

// NewServices wires repositories into the full service container.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	if deps.Config == nil {
		return ServiceContainer{}, errors.New("app config is required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}
	if deps.RedisClient == nil {
		return ServiceContainer{}, errors.New("redis client is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observability := buildObservability(logger, deps.Config.Observability)
	repos := buildRepositories(deps.DB, deps.RedisClient, logger)
	sink := observability.Sink()

	table, err := LoadRuleTable(deps.Config.Scoring, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	scorer, err := service.NewScorerService(service.ScorerServiceOptions{
		Table:    table,
		Postings: repos.PostingRepo,
		Logger:   logger,
		Metrics:  sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create scorer service: %w", err)
	}

	scorerWorker, err := service.NewScorerWorker(service.ScorerWorkerOptions{
		Scorer:   scorer,
		Postings: repos.PostingRepo,
		Config:   deps.Config.Scoring,
		Logger:   logger,
		Metrics:  sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create scorer worker: %w", err)
	}

	var locker core.Locker
	if repos.Locker != nil {
		locker = repos.Locker
	}
	tasks, err := service.NewTaskService(service.TaskServiceOptions{
		Tasks:    repos.TaskRepo,
		Postings: repos.PostingRepo,
		Users:    repos.UserRepo,
		Locker:   locker,
		Logger:   logger,
		Metrics:  sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create task service: %w", err)
	}

	runs, err := service.NewRunService(service.RunServiceOptions{
		Runs:    repos.RunRepo,
		Events:  repos.ObsEventRepo,
		Logger:  logger,
		Metrics: sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create run service: %w", err)
	}

	sessions, err := service.NewSessionService(service.SessionServiceOptions{
		Store:  repos.SessionStore,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create session service: %w", err)
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Tasks:    tasks,
		TaskRepo: repos.TaskRepo,
		Runs:     repos.RunRepo,
		Events:   repos.ObsEventRepo,
		Config:   deps.Config.Reaper,
		Logger:   logger,
		Metrics:  sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create reaper service: %w", err)
	}

	return ServiceContainer{
		Tasks:         tasks,
		Runs:          runs,
		Sessions:      sessions,
		Scorer:        scorer,
		ScorerWorker:  scorerWorker,
		Reaper:        reaper,
		Postings:      repos.PostingRepo,
		Users:         repos.UserRepo,
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig groups everything the service runner needs.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
	Services    ServiceContainer
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode config.ServiceMode
	name string
	run  func(context.Context) error
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	return []backgroundService{
		{
			mode: config.ServiceModeApply,
			name: "queue monitor",
			run: func(ctx context.Context) error {
				return runQueueMonitor(ctx, cfg, logger)
			},
		},
		{
			mode: config.ServiceModeScorer,
			name: "scorer worker",
			run: func(ctx context.Context) error {
				if cfg.Services.ScorerWorker == nil {
					return errors.New("scorer worker not initialised")
				}
				return cfg.Services.ScorerWorker.Run(ctx)
			},
		},
		{
			mode: config.ServiceModeReaper,
			name: "reaper",
			run: func(ctx context.Context) error {
				if cfg.Services.Reaper == nil {
					return errors.New("reaper not initialised")
				}
				return cfg.Services.Reaper.Run(ctx)
			},
		},
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

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	started := 0
	for _, svc := range buildBackgroundServices(cfg, logger) {
		if !enabled[svc.mode] {
			continue
		}
		logger.Info("background service starting", "service", svc.name, "mode", svc.mode)
		group.Go(func() error {
			if runErr := svc.run(groupCtx); runErr != nil {
				return fmt.Errorf("%s failed: %w", svc.name, runErr)
			}
			logger.Info("background service stopped", "service", svc.name)
			return nil
		})
		started++
	}
	if started == 0 {
		return errors.New("no services enabled")
	}

	if waitErr := group.Wait(); waitErr != nil {
		logger.Error("service error", "error", waitErr)
		return waitErr
	}

	logger.Info("services stopped")
	return nil
}

// runQueueMonitor periodically emits queue depth gauges for the apply service.
func runQueueMonitor(ctx context.Context, cfg *ServiceOrchestrationConfig, logger *slog.Logger) error {
	repo := data.NewTaskRepo(cfg.DB, data.RepoConfig{Logger: logger})
	sink := cfg.Services.Observability.Sink()

	ticker := time.NewTicker(queueStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			stats, err := repo.GlobalStats(ctx)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "queue stats failed", "error", err)
				}
				continue
			}
			if sink != nil {
				sink.Gauge("queue.queued", float64(stats.Queued), nil)
				sink.Gauge("queue.in_progress", float64(stats.InProgress), nil)
				sink.Gauge("queue.needs_user", float64(stats.NeedsUser), nil)
				sink.Gauge("queue.failed", float64(stats.Failed), nil)
			}
			if logger != nil {
				logger.DebugContext(ctx, "queue depth",
					"queued", stats.Queued,
					"in_progress", stats.InProgress,
					"needs_user", stats.NeedsUser)
			}
		}
	}
}
