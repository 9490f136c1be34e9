package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jobshield/jobshield/internal/core"
	"github.com/jobshield/jobshield/internal/data"
	"github.com/jobshield/jobshield/internal/domain/model"
	apperrors "github.com/jobshield/jobshield/internal/errors"
	"github.com/jobshield/jobshield/internal/observability/statsd"
)

// RunServiceOptions groups dependencies for RunService.
type RunServiceOptions struct {
	Runs         core.RunRepository                // Required: run repository
	Events       core.ObservabilityEventRepository // Required: event repository
	TimeProvider data.TimeProvider                 // Optional: defaults to real time
	Logger       *slog.Logger                      // Optional: structured logger
	Metrics      statsd.Sink                       // Optional: metrics sink
}

// RunService records apply runs and their append-only observability streams.
type RunService struct {
	runs         core.RunRepository
	events       core.ObservabilityEventRepository
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewRunService constructs a RunService.
func NewRunService(opts RunServiceOptions) (*RunService, error) {
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
		logger = opts.Logger.With("component", "run_service")
	}

	return &RunService{
		runs:         opts.Runs,
		events:       opts.Events,
		timeProvider: timeProvider,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// StartRun opens a new in_progress run pointed at the initial URL.
func (s *RunService) StartRun(ctx context.Context, req *model.StartRunRequest) (*model.ApplyRun, error) {
	if req == nil {
		return nil, apperrors.Validation("start run request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid start run request")
	}

	now := s.timeProvider.Now()
	run := &model.ApplyRun{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		JobID:      req.JobID,
		TaskID:     req.TaskID,
		InitialURL: req.InitialURL,
		CurrentURL: req.InitialURL,
		Status:     model.RunStatusInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.runs.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Count("runs.started", 1, nil)
	}
	if s.logger != nil {
		s.logger.Info("run started", "run_id", created.ID, "user_id", created.UserID)
	}
	return created, nil
}

// GetRun returns a run by id.
func (s *RunService) GetRun(ctx context.Context, runID string) (*model.ApplyRun, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	if run == nil {
		return nil, apperrors.NotFoundf("run %s not found", runID)
	}
	return run, nil
}

// UpdateRun patches optional run fields. A terminal status stamps ended_at.
func (s *RunService) UpdateRun(ctx context.Context, runID string, patch *model.RunPatch) (*model.ApplyRun, error) {
	if patch == nil {
		return nil, apperrors.Validation("run patch is required")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperrors.Validationf("unknown run status %q", *patch.Status)
	}
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	updated, err := s.runs.Update(ctx, runID, patch)
	if err != nil {
		return nil, fmt.Errorf("update run %s: %w", runID, err)
	}

	if s.metrics != nil && patch.Status != nil && patch.Status.Terminal() {
		s.metrics.Count("runs.ended", 1, map[string]string{"status": string(*patch.Status)})
	}
	return updated, nil
}

// AppendEvent inserts one observability event into a run's stream.
func (s *RunService) AppendEvent(ctx context.Context, event *model.ObservabilityEvent) (*model.ObservabilityEvent, error) {
	if event == nil {
		return nil, apperrors.Validation("event is required")
	}
	if err := event.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid observability event")
	}

	run, err := s.GetRun(ctx, event.RunID)
	if err != nil {
		return nil, err
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.UserID == "" {
		event.UserID = run.UserID
	}
	if event.TS.IsZero() {
		event.TS = s.timeProvider.Now()
	}
	if event.EventVersion == 0 {
		event.EventVersion = 1
	}

	inserted, err := s.events.Insert(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("append event to run %s: %w", event.RunID, err)
	}

	if s.metrics != nil {
		s.metrics.Count("runs.events", 1, map[string]string{"severity": string(inserted.Severity)})
	}
	return inserted, nil
}

// ListEvents returns a run's events ordered by ts ascending.
func (s *RunService) ListEvents(ctx context.Context, runID string) ([]*model.ObservabilityEvent, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	events, err := s.events.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list events for run %s: %w", runID, err)
	}
	return events, nil
}
