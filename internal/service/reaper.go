package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobshield/jobshield/config"
	"github.com/jobshield/jobshield/internal/core"
	"github.com/jobshield/jobshield/internal/data"
	"github.com/jobshield/jobshield/internal/domain/model"
	"github.com/jobshield/jobshield/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Tasks        *TaskService                      // Required: transitions go through the FSM
	TaskRepo     core.TaskRepository               // Required: stale scans and retention deletes
	Runs         core.RunRepository                // Required: stale runs and retention deletes
	Events       core.ObservabilityEventRepository // Required: event retention deletes
	Config       config.ReaperConfig               // Required: reaper configuration
	TimeProvider data.TimeProvider                 // Optional: defaults to real time
	Logger       *slog.Logger                      // Optional: structured logger
	Metrics      statsd.Sink                       // Optional: metrics sink
}

// ReaperService keeps the queue healthy over time.
//
// This service manages:
// - Failing tasks stuck in in_progress so they re-enter the retry path.
// - Marking runs stuck in in_progress as abandoned.
// - Deleting terminal tasks, runs, and old events past the retention window.
type ReaperService struct {
	tasks        *TaskService
	taskRepo     core.TaskRepository
	runs         core.RunRepository
	events       core.ObservabilityEventRepository
	config       config.ReaperConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewReaperService constructs a ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Tasks == nil {
		return nil, errors.New("TaskService is required")
	}
	if opts.TaskRepo == nil {
		return nil, errors.New("TaskRepository is required")
	}
	if opts.Runs == nil {
		return nil, errors.New("RunRepository is required")
	}
	if opts.Events == nil {
		return nil, errors.New("ObservabilityEventRepository is required")
	}

	timeProvider := opts.TimeProvider
	if timeProvider == nil {
		timeProvider = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"task_max_age", opts.Config.TaskMaxAge,
			"run_max_age", opts.Config.RunMaxAge,
			"retention_age", opts.Config.RetentionAge,
		)
	}

	return &ReaperService{
		tasks:        opts.Tasks,
		taskRepo:     opts.TaskRepo,
		runs:         opts.Runs,
		events:       opts.Events,
		config:       opts.Config,
		timeProvider: timeProvider,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter prevents a thundering herd when multiple instances start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.runCleanup(ctx); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "initial cleanup failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.runCleanup(ctx); err != nil && s.logger != nil {
				// Keep running despite errors; the next tick retries.
				s.logger.ErrorContext(ctx, "cleanup failed", "error", err)
			}
		}
	}
}

// waitWithJitter delays up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// runCleanup performs one full cleanup pass.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := s.timeProvider.Now()
	var errs []error

	staleTasks, err := s.failStaleTasks(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("fail stale tasks: %w", err))
	}
	staleRuns, err := s.abandonStaleRuns(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("abandon stale runs: %w", err))
	}
	purged, err := s.purgeExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge expired rows: %w", err))
	}

	if s.metrics != nil {
		s.metrics.Count("reaper.stale_tasks", int64(staleTasks), nil)
		s.metrics.Count("reaper.stale_runs", int64(staleRuns), nil)
		s.metrics.Count("reaper.purged_rows", int64(purged), nil)
		s.metrics.Timing("reaper.cleanup_duration", s.timeProvider.Now().Sub(start), nil)
	}
	if s.logger != nil && (staleTasks > 0 || staleRuns > 0 || purged > 0) {
		s.logger.InfoContext(ctx, "cleanup pass complete",
			"stale_tasks", staleTasks,
			"stale_runs", staleRuns,
			"purged_rows", purged)
	}

	return errors.Join(errs...)
}

// failStaleTasks pushes tasks stuck in in_progress through the regular FSM
// so their events stay consistent with their status.
func (s *ReaperService) failStaleTasks(ctx context.Context) (int, error) {
	cutoff := s.timeProvider.Now().Add(-s.config.TaskMaxAge)
	stale, err := s.taskRepo.StaleInProgress(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	reason := fmt.Sprintf("no progress for more than %s", s.config.TaskMaxAge)
	failed := 0
	for _, task := range stale {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		_, _, terr := s.tasks.Transition(ctx, &model.TransitionRequest{
			TaskID:   task.ID,
			ToStatus: model.TaskStatusFailed,
			Reason:   &reason,
		})
		if terr != nil {
			// A racing worker may have moved the task already; skip it.
			if s.logger != nil {
				s.logger.WarnContext(ctx, "failing stale task skipped",
					"task_id", task.ID, "error", terr)
			}
			continue
		}
		failed++
	}
	return failed, nil
}

func (s *ReaperService) abandonStaleRuns(ctx context.Context) (int, error) {
	cutoff := s.timeProvider.Now().Add(-s.config.RunMaxAge)
	stale, err := s.runs.StaleInProgress(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	abandoned := model.RunStatusAbandoned
	reason := fmt.Sprintf("no progress for more than %s", s.config.RunMaxAge)
	count := 0
	for _, run := range stale {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		_, uerr := s.runs.Update(ctx, run.ID, &model.RunPatch{
			Status:        &abandoned,
			FailureReason: &reason,
		})
		if uerr != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "abandoning stale run skipped",
					"run_id", run.ID, "error", uerr)
			}
			continue
		}
		count++
	}
	return count, nil
}

func (s *ReaperService) purgeExpired(ctx context.Context) (int, error) {
	cutoff := s.timeProvider.Now().Add(-s.config.RetentionAge)
	total := 0

	n, err := s.taskRepo.DeleteTerminalBefore(ctx, cutoff)
	total += n
	if err != nil {
		return total, err
	}

	n, err = s.events.DeleteBefore(ctx, cutoff)
	total += n
	if err != nil {
		return total, err
	}

	n, err = s.runs.DeleteTerminalBefore(ctx, cutoff)
	total += n
	if err != nil {
		return total, err
	}

	return total, nil
}
