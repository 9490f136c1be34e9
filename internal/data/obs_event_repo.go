package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobshield/jobshield/internal/domain/model"
	apperrors "github.com/jobshield/jobshield/internal/errors"
)

// ObservabilityEventRepo provides database operations for run event streams.
type ObservabilityEventRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewObservabilityEventRepo creates a new ObservabilityEventRepo instance.
func NewObservabilityEventRepo(db *sql.DB, cfg RepoConfig) *ObservabilityEventRepo {
	return &ObservabilityEventRepo{
		DB:     db,
		logger: cfg.Logger,
	}
}

const obsEventColumns = `
  id,
  run_id,
  user_id,
  source,
  severity,
  event_name,
  event_version,
  ts,
  url,
  payload,
  dedup_key,
  request_id,
  detection_id,
  page_id
`

func scanObsEvent(row interface{ Scan(...any) error }) (*model.ObservabilityEvent, error) {
	var event model.ObservabilityEvent
	err := row.Scan(
		&event.ID,
		&event.RunID,
		&event.UserID,
		&event.Source,
		&event.Severity,
		&event.EventName,
		&event.EventVersion,
		&event.TS,
		&event.URL,
		&event.Payload,
		&event.DedupKey,
		&event.RequestID,
		&event.DetectionID,
		&event.PageID,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Insert appends one event to its run's stream.
func (r *ObservabilityEventRepo) Insert(ctx context.Context, event *model.ObservabilityEvent) (*model.ObservabilityEvent, error) {
	if event == nil {
		return nil, errors.New("event is required")
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO observability_events
		  (id, run_id, user_id, source, severity, event_name, event_version, ts, url, payload, dedup_key, request_id, detection_id, page_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+obsEventColumns,
		event.ID, event.RunID, event.UserID, event.Source, event.Severity,
		event.EventName, event.EventVersion, event.TS, event.URL,
		nullableJSON(event.Payload), event.DedupKey, event.RequestID,
		event.DetectionID, event.PageID,
	)
	inserted, err := scanObsEvent(row)
	if err != nil {
		return nil, fmt.Errorf("insert observability event: %w", apperrors.MapDBError(err))
	}
	return inserted, nil
}

// ListByRun returns the run's events ordered by ts ascending, insertion order
// breaking ties.
func (r *ObservabilityEventRepo) ListByRun(ctx context.Context, runID string) ([]*model.ObservabilityEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+obsEventColumns+`
		FROM observability_events
		WHERE run_id = $1
		ORDER BY ts ASC, seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	var events []*model.ObservabilityEvent
	for rows.Next() {
		event, scanErr := scanObsEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan run event: %w", scanErr)
		}
		events = append(events, event)
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, fmt.Errorf("iterate run events: %w", iterErr)
	}
	return events, nil
}

// DeleteBefore removes events older than cutoff, returning the number removed.
func (r *ObservabilityEventRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM observability_events WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("old events rows affected: %w", err)
	}
	return int(n), nil
}
