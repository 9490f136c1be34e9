package service

import (
	"context"
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

// ScorerWorkerOptions groups dependencies for ScorerWorker.
type ScorerWorkerOptions struct {
	Scorer       *ScorerService            // Required: scoring engine
	Postings     core.JobPostingRepository // Required: unscored posting scans
	Config       config.ScoringConfig      // Required: batch size and interval
	TimeProvider data.TimeProvider         // Optional: defaults to real time
	Logger       *slog.Logger              // Optional: structured logger
	Metrics      statsd.Sink               // Optional: metrics sink
}

// ScorerWorker drains unscored postings on a ticker and persists a scoring
// result for each. Postings that cannot be scored still get a fallback result,
// so a posting never stays unscored across passes unless persistence fails.
type ScorerWorker struct {
	scorer       *ScorerService
	postings     core.JobPostingRepository
	config       config.ScoringConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewScorerWorker constructs a ScorerWorker.
func NewScorerWorker(opts ScorerWorkerOptions) (*ScorerWorker, error) {
	if opts.Scorer == nil {
		return nil, errors.New("ScorerService is required")
	}
	if opts.Postings == nil {
		return nil, errors.New("JobPostingRepository is required")
	}

	timeProvider := opts.TimeProvider
	if timeProvider == nil {
		timeProvider = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "scorer_worker")
		logger.Debug("ScorerWorker initialized",
			"interval", opts.Config.Interval,
			"batch_size", opts.Config.RescoreBatchSize,
		)
	}

	return &ScorerWorker{
		scorer:       opts.Scorer,
		postings:     opts.Postings,
		config:       opts.Config,
		timeProvider: timeProvider,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// Run starts the scoring loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ScorerWorker) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting scorer worker", "interval", s.config.Interval)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.RunOnce(ctx); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "initial scoring pass failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "scorer worker stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && s.logger != nil {
				// Keep running despite errors; the next tick retries.
				s.logger.ErrorContext(ctx, "scoring pass failed", "error", err)
			}
		}
	}
}

// RunOnce performs one scoring pass and returns the number of postings scored.
func (s *ScorerWorker) RunOnce(ctx context.Context) (int, error) {
	start := s.timeProvider.Now()

	unscored, err := s.postings.ListUnscored(ctx, s.config.RescoreBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unscored postings: %w", err)
	}

	scored := 0
	var errs []error
	for _, posting := range unscored {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := s.scorePosting(ctx, posting); err != nil {
			errs = append(errs, err)
			continue
		}
		scored++
	}

	if s.metrics != nil {
		s.metrics.Count("scorer_worker.scored", int64(scored), nil)
		s.metrics.Count("scorer_worker.errors", int64(len(errs)), nil)
		s.metrics.Timing("scorer_worker.pass_duration", s.timeProvider.Now().Sub(start), nil)
	}
	if s.logger != nil && (scored > 0 || len(errs) > 0) {
		s.logger.InfoContext(ctx, "scoring pass complete",
			"scored", scored,
			"errors", len(errs))
	}

	return scored, errors.Join(errs...)
}

func (s *ScorerWorker) scorePosting(ctx context.Context, posting *model.JobPosting) error {
	record := posting.Record
	if record == nil {
		// A posting without a record still gets the insufficient-data result.
		record = &model.JobRecord{JobID: posting.JobID, URL: posting.URL, Platform: posting.Platform}
	}
	if _, err := s.scorer.ScoreAndStore(ctx, record); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "scoring posting failed",
				"job_id", posting.JobID, "error", err)
		}
		return fmt.Errorf("score posting %s: %w", posting.JobID, err)
	}
	return nil
}
