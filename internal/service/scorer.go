package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jobshield/jobshield/internal/core"
	"github.com/jobshield/jobshield/internal/data"
	"github.com/jobshield/jobshield/internal/domain/enrich"
	"github.com/jobshield/jobshield/internal/domain/model"
	"github.com/jobshield/jobshield/internal/domain/rules"
	"github.com/jobshield/jobshield/internal/observability/statsd"
)

const insufficientDataFlag = "Missing job description text"

// ScorerServiceOptions groups dependencies for ScorerService.
type ScorerServiceOptions struct {
	Table        *rules.Table              // Required: loaded rule table
	Postings     core.JobPostingRepository // Optional: persistence for scoring results
	TimeProvider data.TimeProvider         // Optional: defaults to real time
	Logger       *slog.Logger              // Optional: structured logger
	Metrics      statsd.Sink               // Optional: metrics sink
}

// ScorerService scores job records against the loaded rule table. Stateless
// between calls; safe for concurrent use.
type ScorerService struct {
	engine       *rules.Engine
	postings     core.JobPostingRepository
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewScorerService constructs a ScorerService.
func NewScorerService(opts ScorerServiceOptions) (*ScorerService, error) {
	if opts.Table == nil {
		return nil, errors.New("rule table is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "scorer_service")
	}

	engine, err := rules.NewEngine(rules.EngineOptions{Table: opts.Table, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("create rule engine: %w", err)
	}

	timeProvider := opts.TimeProvider
	if timeProvider == nil {
		timeProvider = &data.RealTimeProvider{}
	}

	return &ScorerService{
		engine:       engine,
		postings:     opts.Postings,
		timeProvider: timeProvider,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// Score evaluates one record. Never returns an error: records the engine
// cannot score come back as an insufficient-data or scoring-error result so
// callers always have something to persist and display.
func (s *ScorerService) Score(record *model.JobRecord) *model.ScoredJob {
	start := s.timeProvider.Now()
	scored := s.score(record)
	scored.ComputedAt = s.timeProvider.Now()

	if s.metrics != nil {
		s.metrics.Timing("scoring.duration", s.timeProvider.Now().Sub(start), nil)
		s.metrics.Count("scoring.scored", 1, map[string]string{"level": string(scored.Level)})
	}
	if s.logger != nil {
		jobID := ""
		if record != nil {
			jobID = record.JobID
		}
		s.logger.Debug("record scored",
			"job_id", jobID,
			"score", scored.AuthenticityScore,
			"level", scored.Level,
			"confidence", scored.Confidence,
			"activated", len(scored.ActivatedRules))
	}
	return scored
}

// ScoreAndStore scores a record and overwrites the posting's persisted result.
func (s *ScorerService) ScoreAndStore(ctx context.Context, record *model.JobRecord) (*model.ScoredJob, error) {
	scored := s.Score(record)
	if s.postings == nil {
		return scored, nil
	}
	if err := s.postings.SaveScore(ctx, record.JobID, scored); err != nil {
		return nil, fmt.Errorf("save score for %s: %w", record.JobID, err)
	}
	return scored, nil
}

func (s *ScorerService) score(record *model.JobRecord) (scored *model.ScoredJob) {
	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Error("scoring panicked", "panic", r)
			}
			if s.metrics != nil {
				s.metrics.Count("scoring.errors", 1, nil)
			}
			scored = s.fallbackResult(fmt.Sprintf("Scoring error: %v", r))
		}
	}()

	if record == nil || record.JDText == "" {
		if s.metrics != nil {
			s.metrics.Count("scoring.insufficient_data", 1, nil)
		}
		return s.fallbackResult(insufficientDataFlag)
	}

	enrich.Apply(record)
	activated := s.engine.Evaluate(record)
	fused := rules.Fuse(activated, record)
	explanation := rules.Explain(fused.Score, fused.Level, activated)

	activatedRules := make([]model.ActivatedRule, 0, len(activated))
	for _, a := range activated {
		activatedRules = append(activatedRules, model.ActivatedRule{
			ID:         a.ID,
			Weight:     a.EffectiveWeight,
			Confidence: string(a.Confidence),
		})
	}

	return &model.ScoredJob{
		AuthenticityScore: fused.Score,
		Level:             fused.Level,
		Confidence:        fused.Confidence,
		Summary:           explanation.Summary,
		RedFlags:          explanation.RedFlags,
		PositiveSignals:   explanation.PositiveSignals,
		ActivatedRules:    activatedRules,
	}
}

// fallbackResult is the neutral midpoint returned when a record cannot be
// scored: the caller learns why through the single red flag.
func (s *ScorerService) fallbackResult(flag string) *model.ScoredJob {
	return &model.ScoredJob{
		AuthenticityScore: 50.0,
		Level:             model.LevelUncertain,
		Confidence:        model.ConfidenceLow,
		Summary:           "Authenticity score: 50",
		RedFlags:          []string{flag},
		PositiveSignals:   []string{},
		ActivatedRules:    []model.ActivatedRule{},
	}
}
