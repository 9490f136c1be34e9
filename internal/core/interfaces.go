// Package core defines the contracts between the service layer and the data
// layer (ports in hexagonal architecture). Services depend on these
// interfaces, never on concrete repositories.
package core

import (
	"context"
	"time"

	"github.com/jobshield/jobshield/internal/domain/model"
)

// TaskRepository defines the interface for apply-task data operations.
type TaskRepository interface {
	// InsertBatch creates the tasks and their initial none->queued events in
	// one transaction. Either all rows persist or none do.
	InsertBatch(ctx context.Context, tasks []*model.Task) ([]*model.Task, error)
	GetByID(ctx context.Context, id string) (*model.Task, error)
	// List returns one queue page ordered by priority descending then
	// created_at ascending, plus the total count over the same filter.
	List(ctx context.Context, opts model.ListTasksOptions) ([]*model.Task, int, error)
	// ActiveJobIDs returns the subset of jobIDs that already have a task in
	// {queued, in_progress, needs_user} for the user.
	ActiveJobIDs(ctx context.Context, userID string, jobIDs []string) (map[string]bool, error)
	// Transition applies one guarded status change and appends its event
	// atomically. A compare-and-swap on the prior status detects races; a lost
	// race returns the freshly loaded task and ok=false.
	Transition(ctx context.Context, task *model.Task, req *model.TransitionRequest) (*model.Task, *model.TaskEvent, bool, error)
	ListEvents(ctx context.Context, taskID string) ([]*model.TaskEvent, error)
	Stats(ctx context.Context, userID string) (*model.TaskStats, error)
	// StaleInProgress returns tasks sitting in in_progress since before cutoff.
	StaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]*model.Task, error)
	// DeleteTerminalBefore removes terminal tasks (and their events) whose
	// last update is older than cutoff, returning the number removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// RunRepository defines the interface for apply-run data operations.
type RunRepository interface {
	Create(ctx context.Context, run *model.ApplyRun) (*model.ApplyRun, error)
	GetByID(ctx context.Context, id string) (*model.ApplyRun, error)
	Update(ctx context.Context, id string, patch *model.RunPatch) (*model.ApplyRun, error)
	// StaleInProgress returns in_progress runs started before cutoff.
	StaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]*model.ApplyRun, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ObservabilityEventRepository defines the interface for run event streams.
type ObservabilityEventRepository interface {
	Insert(ctx context.Context, event *model.ObservabilityEvent) (*model.ObservabilityEvent, error)
	// ListByRun returns the run's events ordered by ts ascending, insertion
	// order breaking ties.
	ListByRun(ctx context.Context, runID string) ([]*model.ObservabilityEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// JobPostingRepository defines the interface for collected job postings.
type JobPostingRepository interface {
	Upsert(ctx context.Context, posting *model.JobPosting) (*model.JobPosting, error)
	GetByID(ctx context.Context, jobID string) (*model.JobPosting, error)
	GetByIDs(ctx context.Context, jobIDs []string) (map[string]*model.JobPosting, error)
	// SaveScore overwrites the posting's persisted scoring result.
	SaveScore(ctx context.Context, jobID string, score *model.ScoredJob) error
	List(ctx context.Context, limit, offset int) ([]*model.JobPosting, error)
	// ListUnscored returns postings without a persisted score, oldest first.
	ListUnscored(ctx context.Context, limit int) ([]*model.JobPosting, error)
}

// UserRepository defines the interface for user lookups.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// SessionStore defines the interface for the per-user active apply session.
// Set replaces any prior session atomically; Get returns nil after expiry.
type SessionStore interface {
	Set(ctx context.Context, session *model.ActiveApplySession) error
	Get(ctx context.Context, userID string) (*model.ActiveApplySession, error)
	Clear(ctx context.Context, userID string) error
}

// Locker provides short-lived mutual exclusion keyed by string, used to
// suppress rapid duplicate enqueue requests.
type Locker interface {
	// TryLock acquires key for ttl; returns false when someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
