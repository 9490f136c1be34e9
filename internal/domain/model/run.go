package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// RunStatus represents the lifecycle state of an apply run.
type RunStatus string

const (
	// RunStatusInProgress indicates the run is being driven by a worker.
	RunStatusInProgress RunStatus = "in_progress"
	// RunStatusSuccess indicates the application was submitted end to end.
	RunStatusSuccess RunStatus = "success"
	// RunStatusFailed indicates the run ended with an unrecoverable error.
	RunStatusFailed RunStatus = "failed"
	// RunStatusAbandoned indicates the run went stale and was closed out.
	RunStatusAbandoned RunStatus = "abandoned"
)

// Valid returns true if the RunStatus is known.
func (s RunStatus) Valid() bool {
	return s == RunStatusInProgress || s == RunStatusSuccess ||
		s == RunStatusFailed || s == RunStatusAbandoned
}

// Terminal returns true once the run can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed || s == RunStatusAbandoned
}

// ApplyRun is one end-to-end application attempt for a posting.
type ApplyRun struct {
	ID              string     `json:"id"              db:"id"`
	UserID          string     `json:"user_id"         db:"user_id"`
	JobID           *string    `json:"job_id,omitempty"  db:"job_id"`
	TaskID          *string    `json:"task_id,omitempty" db:"task_id"`
	InitialURL      string     `json:"initial_url"     db:"initial_url"`
	CurrentURL      string     `json:"current_url"     db:"current_url"`
	ATSKind         *string    `json:"ats_kind,omitempty" db:"ats_kind"`
	Intent          *string    `json:"intent,omitempty"   db:"intent"`
	Stage           *string    `json:"stage,omitempty"    db:"stage"`
	Status          RunStatus  `json:"status"          db:"status"`
	FillRate        *float64   `json:"fill_rate,omitempty" db:"fill_rate"`
	FieldsAttempted *int       `json:"fields_attempted,omitempty" db:"fields_attempted"`
	FieldsFilled    *int       `json:"fields_filled,omitempty"    db:"fields_filled"`
	FieldsSkipped   *int       `json:"fields_skipped,omitempty"   db:"fields_skipped"`
	FailureReason   *string    `json:"failure_reason,omitempty"   db:"failure_reason"`
	CreatedAt       time.Time  `json:"created_at"      db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"      db:"updated_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

// StartRunRequest creates a new apply run.
type StartRunRequest struct {
	UserID     string  `json:"user_id"`
	TaskID     *string `json:"task_id,omitempty"`
	JobID      *string `json:"job_id,omitempty"`
	InitialURL string  `json:"initial_url"`
}

// Validate validates the start-run request.
func (r *StartRunRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.InitialURL) == "" {
		return errors.New("initial_url is required")
	}
	return nil
}

// RunPatch mutates optional fields on an existing run. Nil fields are left
// untouched; setting a terminal Status stamps EndedAt.
type RunPatch struct {
	CurrentURL      *string    `json:"current_url,omitempty"`
	ATSKind         *string    `json:"ats_kind,omitempty"`
	Intent          *string    `json:"intent,omitempty"`
	Stage           *string    `json:"stage,omitempty"`
	Status          *RunStatus `json:"status,omitempty"`
	FillRate        *float64   `json:"fill_rate,omitempty"`
	FieldsAttempted *int       `json:"fields_attempted,omitempty"`
	FieldsFilled    *int       `json:"fields_filled,omitempty"`
	FieldsSkipped   *int       `json:"fields_skipped,omitempty"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
}

// EventSource identifies which surface emitted an observability event.
type EventSource string

const (
	// SourceExtension marks events from the browser extension.
	SourceExtension EventSource = "extension"
	// SourceBackend marks events from the backend workers.
	SourceBackend EventSource = "backend"
	// SourceWeb marks events from the web client.
	SourceWeb EventSource = "web"
)

// Valid returns true if the EventSource is known.
func (s EventSource) Valid() bool {
	return s == SourceExtension || s == SourceBackend || s == SourceWeb
}

// EventSeverity grades an observability event.
type EventSeverity string

const (
	// SeverityDebug marks diagnostic noise.
	SeverityDebug EventSeverity = "debug"
	// SeverityInfo marks routine progress.
	SeverityInfo EventSeverity = "info"
	// SeverityWarn marks recoverable anomalies.
	SeverityWarn EventSeverity = "warn"
	// SeverityError marks failures.
	SeverityError EventSeverity = "error"
)

// Valid returns true if the EventSeverity is known.
func (s EventSeverity) Valid() bool {
	return s == SeverityDebug || s == SeverityInfo || s == SeverityWarn || s == SeverityError
}

// ObservabilityEvent is one append-only observation inside a run,
// ordered by TS within the run.
type ObservabilityEvent struct {
	ID           string          `json:"id"            db:"id"`
	RunID        string          `json:"run_id"        db:"run_id"`
	UserID       string          `json:"user_id"       db:"user_id"`
	Source       EventSource     `json:"source"        db:"source"`
	Severity     EventSeverity   `json:"severity"      db:"severity"`
	EventName    string          `json:"event_name"    db:"event_name"`
	EventVersion int             `json:"event_version" db:"event_version"`
	TS           time.Time       `json:"ts"            db:"ts"`
	URL          *string         `json:"url,omitempty"     db:"url"`
	Payload      json.RawMessage `json:"payload,omitempty" db:"payload"`
	DedupKey     *string         `json:"dedup_key,omitempty"    db:"dedup_key"`
	RequestID    *string         `json:"request_id,omitempty"   db:"request_id"`
	DetectionID  *string         `json:"detection_id,omitempty" db:"detection_id"`
	PageID       *string         `json:"page_id,omitempty"      db:"page_id"`
}

// Validate validates the fields required before appending an event.
func (e *ObservabilityEvent) Validate() error {
	if strings.TrimSpace(e.EventName) == "" {
		return errors.New("event_name is required")
	}
	if !e.Source.Valid() {
		return errors.New("unknown event source")
	}
	if !e.Severity.Valid() {
		return errors.New("unknown event severity")
	}
	return nil
}
