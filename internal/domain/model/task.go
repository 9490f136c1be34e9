package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// TaskStatus represents the current status of an apply task.
type TaskStatus string

const (
	// TaskStatusQueued indicates a task is waiting to be picked up.
	TaskStatusQueued TaskStatus = "queued"
	// TaskStatusInProgress indicates a worker is driving the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusNeedsUser indicates the task is blocked on user input.
	TaskStatusNeedsUser TaskStatus = "needs_user"
	// TaskStatusSuccess indicates the application was submitted.
	TaskStatusSuccess TaskStatus = "success"
	// TaskStatusFailed indicates the last attempt failed; the task may be retried.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCanceled indicates the task was abandoned by the user.
	TaskStatusCanceled TaskStatus = "canceled"

	// TaskStatusNone is the synthetic from_status of the initial task event.
	TaskStatusNone TaskStatus = "none"
)

// Valid returns true if the TaskStatus is a real task state.
// TaskStatusNone is only valid as an event origin, never as a task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusInProgress, TaskStatusNeedsUser,
		TaskStatusSuccess, TaskStatusFailed, TaskStatusCanceled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no transitions leave this status.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusCanceled
}

// PriorityStrategy selects how enqueue computes task priority.
type PriorityStrategy string

const (
	// StrategyDecisionThenNewest ranks by apply decision, then recency.
	StrategyDecisionThenNewest PriorityStrategy = "decision_then_newest"
	// StrategyNewest ranks purely by posting recency.
	StrategyNewest PriorityStrategy = "newest"
	// StrategyHighestScore ranks by authenticity score.
	StrategyHighestScore PriorityStrategy = "highest_score"
)

// Valid returns true if the PriorityStrategy is known.
func (p PriorityStrategy) Valid() bool {
	return p == StrategyDecisionThenNewest || p == StrategyNewest || p == StrategyHighestScore
}

// Task is one unit of apply work for a user against a specific posting.
type Task struct {
	ID           string          `json:"id"            db:"id"`
	UserID       string          `json:"user_id"       db:"user_id"`
	JobID        string          `json:"job_id"        db:"job_id"`
	Status       TaskStatus      `json:"status"        db:"status"`
	Priority     int             `json:"priority"      db:"priority"`
	AttemptCount int             `json:"attempt_count" db:"attempt_count"`
	LastError    *string         `json:"last_error,omitempty" db:"last_error"`
	Metadata     json.RawMessage `json:"task_metadata,omitempty" db:"task_metadata"`
	CreatedAt    time.Time       `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"    db:"updated_at"`
}

// TaskEvent is one append-only entry in a task's transition log.
type TaskEvent struct {
	ID         string          `json:"id"          db:"id"`
	TaskID     string          `json:"task_id"     db:"task_id"`
	FromStatus TaskStatus      `json:"from_status" db:"from_status"`
	ToStatus   TaskStatus      `json:"to_status"   db:"to_status"`
	Reason     *string         `json:"reason,omitempty"  db:"reason"`
	Details    json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time       `json:"created_at"  db:"created_at"`
}

// EnqueueTasksRequest asks for apply tasks to be created for a user.
type EnqueueTasksRequest struct {
	UserID          string           `json:"user_id"`
	JobIDs          []string         `json:"job_ids"`
	Strategy        PriorityStrategy `json:"strategy,omitempty"`
	AllowDuplicates bool             `json:"allow_duplicates,omitempty"`
}

// Validate validates the enqueue request.
func (r *EnqueueTasksRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if len(r.JobIDs) == 0 {
		return errors.New("job_ids is required")
	}
	if r.Strategy != "" && !r.Strategy.Valid() {
		return errors.New("unknown priority strategy")
	}
	return nil
}

// ListTasksOptions filters and paginates a user's task queue.
type ListTasksOptions struct {
	UserID string
	Status *TaskStatus
	Limit  int
	Offset int
}

// TransitionRequest asks for one guarded state-machine transition.
type TransitionRequest struct {
	TaskID   string          `json:"task_id"`
	ToStatus TaskStatus      `json:"to_status"`
	Reason   *string         `json:"reason,omitempty"`
	Details  json.RawMessage `json:"details,omitempty"`
}

// TaskStats counts a user's tasks in each state.
type TaskStats struct {
	Queued     int `json:"queued"`
	InProgress int `json:"in_progress"`
	NeedsUser  int `json:"needs_user"`
	Success    int `json:"success"`
	Failed     int `json:"failed"`
	Canceled   int `json:"canceled"`
}
