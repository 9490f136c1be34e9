package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jobshield/jobshield/internal/core"
	"github.com/jobshield/jobshield/internal/data"
	"github.com/jobshield/jobshield/internal/domain/apply"
	"github.com/jobshield/jobshield/internal/domain/model"
	apperrors "github.com/jobshield/jobshield/internal/errors"
	"github.com/jobshield/jobshield/internal/observability/statsd"
)

// enqueueLockTTL bounds how long a duplicate enqueue request is suppressed.
const enqueueLockTTL = 5 * time.Second

// TaskServiceOptions groups dependencies for TaskService.
type TaskServiceOptions struct {
	Tasks        core.TaskRepository       // Required: task repository
	Postings     core.JobPostingRepository // Required: posting lookups for priority
	Users        core.UserRepository       // Required: user existence checks
	Locker       core.Locker               // Optional: enqueue dedupe lock
	TimeProvider data.TimeProvider         // Optional: defaults to real time
	Logger       *slog.Logger              // Optional: structured logger
	Metrics      statsd.Sink               // Optional: metrics sink
}

// TaskService owns the apply-task queue: enqueue with priority computation,
// queue listing, and guarded state-machine transitions with an append-only
// event trail.
type TaskService struct {
	tasks        core.TaskRepository
	postings     core.JobPostingRepository
	users        core.UserRepository
	locker       core.Locker
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewTaskService constructs a TaskService.
func NewTaskService(opts TaskServiceOptions) (*TaskService, error) {
	if opts.Tasks == nil {
		return nil, errors.New("TaskRepository is required")
	}
	if opts.Postings == nil {
		return nil, errors.New("JobPostingRepository is required")
	}
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}

	timeProvider := opts.TimeProvider
	if timeProvider == nil {
		timeProvider = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "task_service")
	}

	return &TaskService{
		tasks:        opts.Tasks,
		postings:     opts.Postings,
		users:        opts.Users,
		locker:       opts.Locker,
		timeProvider: timeProvider,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// Enqueue creates queued tasks for the user's selected postings. Unless
// duplicates are allowed, postings that already have a live task are silently
// skipped; the returned slice may be empty. Unknown users or postings fail
// the whole batch.
func (s *TaskService) Enqueue(ctx context.Context, req *model.EnqueueTasksRequest) ([]*model.Task, error) {
	if req == nil {
		return nil, apperrors.Validation("enqueue request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid enqueue request")
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = model.StrategyDecisionThenNewest
	}

	if s.locker != nil {
		key := enqueueLockKey(req.UserID, req.JobIDs)
		acquired, err := s.locker.TryLock(ctx, key, enqueueLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire enqueue lock: %w", err)
		}
		if !acquired {
			return nil, apperrors.Conflict("identical enqueue request already in flight")
		}
		defer func() {
			if unlockErr := s.locker.Unlock(context.WithoutCancel(ctx), key); unlockErr != nil && s.logger != nil {
				s.logger.Warn("release enqueue lock failed", "error", unlockErr)
			}
		}()
	}

	exists, err := s.users.Exists(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("check user %s: %w", req.UserID, err)
	}
	if !exists {
		return nil, apperrors.Validationf("unknown user %q", req.UserID)
	}

	postings, err := s.postings.GetByIDs(ctx, req.JobIDs)
	if err != nil {
		return nil, fmt.Errorf("load postings: %w", err)
	}
	var missing []string
	for _, jobID := range req.JobIDs {
		if postings[jobID] == nil {
			missing = append(missing, jobID)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.Validationf("unknown job ids: %s", strings.Join(missing, ", "))
	}

	jobIDs := req.JobIDs
	if !req.AllowDuplicates {
		active, activeErr := s.tasks.ActiveJobIDs(ctx, req.UserID, req.JobIDs)
		if activeErr != nil {
			return nil, fmt.Errorf("check active tasks: %w", activeErr)
		}
		jobIDs = jobIDs[:0:0]
		for _, jobID := range req.JobIDs {
			if !active[jobID] {
				jobIDs = append(jobIDs, jobID)
			}
		}
	}
	if len(jobIDs) == 0 {
		return []*model.Task{}, nil
	}

	now := s.timeProvider.Now()
	toInsert := make([]*model.Task, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		toInsert = append(toInsert, &model.Task{
			ID:        uuid.NewString(),
			UserID:    req.UserID,
			JobID:     jobID,
			Status:    model.TaskStatusQueued,
			Priority:  apply.Priority(postings[jobID], strategy, now),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	created, err := s.tasks.InsertBatch(ctx, toInsert)
	if err != nil {
		return nil, fmt.Errorf("insert tasks: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Count("tasks.enqueued", int64(len(created)), map[string]string{"strategy": string(strategy)})
	}
	if s.logger != nil {
		s.logger.Info("tasks enqueued",
			"user_id", req.UserID,
			"requested", len(req.JobIDs),
			"created", len(created),
			"strategy", strategy)
	}
	return created, nil
}

// List returns one page of the user's queue ordered by priority descending
// then created_at ascending, plus the total over the same filter.
func (s *TaskService) List(ctx context.Context, opts model.ListTasksOptions) ([]*model.Task, int, error) {
	if strings.TrimSpace(opts.UserID) == "" {
		return nil, 0, apperrors.Validation("user_id is required")
	}
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, 0, apperrors.Validationf("unknown status %q", *opts.Status)
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	tasks, total, err := s.tasks.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if task == nil {
		return nil, apperrors.NotFoundf("task %s not found", taskID)
	}
	return task, nil
}

// Transition applies one guarded state-machine step and appends its event,
// atomically. Concurrent transitions on the same task race on a status
// compare-and-swap; the loser fails with an invalid-transition error computed
// against the winner's state.
func (s *TaskService) Transition(ctx context.Context, req *model.TransitionRequest) (*model.Task, *model.TaskEvent, error) {
	if req == nil || strings.TrimSpace(req.TaskID) == "" {
		return nil, nil, apperrors.Validation("task_id is required")
	}

	task, err := s.Get(ctx, req.TaskID)
	if err != nil {
		return nil, nil, err
	}

	if err := apply.CheckTransition(task.Status, req.ToStatus, req.Reason); err != nil {
		return nil, nil, err
	}

	updated, event, ok, err := s.tasks.Transition(ctx, task, req)
	if err != nil {
		return nil, nil, fmt.Errorf("transition task %s: %w", req.TaskID, err)
	}
	if !ok {
		// Lost the race: updated carries the winner's state.
		current := task.Status
		if updated != nil {
			current = updated.Status
		}
		if checkErr := apply.CheckTransition(current, req.ToStatus, req.Reason); checkErr != nil {
			return nil, nil, checkErr
		}
		return nil, nil, apperrors.Conflictf(
			"task %s was transitioned concurrently (now %s)", req.TaskID, current)
	}

	if s.metrics != nil {
		s.metrics.Count("tasks.transition", 1, map[string]string{
			"from": string(event.FromStatus),
			"to":   string(event.ToStatus),
		})
	}
	if s.logger != nil {
		s.logger.Info("task transitioned",
			"task_id", updated.ID,
			"from", event.FromStatus,
			"to", event.ToStatus,
			"attempt_count", updated.AttemptCount)
	}
	return updated, event, nil
}

// ListEvents returns a task's transition log in append order.
func (s *TaskService) ListEvents(ctx context.Context, taskID string) ([]*model.TaskEvent, error) {
	if _, err := s.Get(ctx, taskID); err != nil {
		return nil, err
	}
	events, err := s.tasks.ListEvents(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list events for task %s: %w", taskID, err)
	}
	return events, nil
}

// Stats counts the user's tasks per status.
func (s *TaskService) Stats(ctx context.Context, userID string) (*model.TaskStats, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.Validation("user_id is required")
	}
	stats, err := s.tasks.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("task stats for user %s: %w", userID, err)
	}
	return stats, nil
}

// enqueueLockKey folds the sorted job ids into a stable key so identical
// requests collide regardless of job id order.
func enqueueLockKey(userID string, jobIDs []string) string {
	sorted := make([]string, len(jobIDs))
	copy(sorted, jobIDs)
	sort.Strings(sorted)

	h := fnv.New64a()
	for _, id := range sorted {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("enqueue_lock:%s:%x", userID, h.Sum64())
}
