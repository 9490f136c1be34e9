package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jobshield/jobshield/internal/domain/model"
	apperrors "github.com/jobshield/jobshield/internal/errors"
)

// RunRepo provides database operations for apply runs.
type RunRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewRunRepo creates a new RunRepo instance.
func NewRunRepo(db *sql.DB, cfg RepoConfig) *RunRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &RunRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const runColumns = `
  id,
  user_id,
  job_id,
  task_id,
  initial_url,
  current_url,
  ats_kind,
  intent,
  stage,
  status,
  fill_rate,
  fields_attempted,
  fields_filled,
  fields_skipped,
  failure_reason,
  created_at,
  updated_at,
  ended_at
`

func scanRun(row interface{ Scan(...any) error }) (*model.ApplyRun, error) {
	var run model.ApplyRun
	err := row.Scan(
		&run.ID,
		&run.UserID,
		&run.JobID,
		&run.TaskID,
		&run.InitialURL,
		&run.CurrentURL,
		&run.ATSKind,
		&run.Intent,
		&run.Stage,
		&run.Status,
		&run.FillRate,
		&run.FieldsAttempted,
		&run.FieldsFilled,
		&run.FieldsSkipped,
		&run.FailureReason,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Create inserts a new run.
func (r *RunRepo) Create(ctx context.Context, run *model.ApplyRun) (*model.ApplyRun, error) {
	if run == nil {
		return nil, errors.New("run is required")
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO apply_runs (id, user_id, job_id, task_id, initial_url, current_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+runColumns,
		run.ID, run.UserID, run.JobID, run.TaskID, run.InitialURL, run.CurrentURL,
		run.Status, run.CreatedAt, run.UpdatedAt,
	)
	created, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", apperrors.MapDBError(err))
	}
	return created, nil
}

// GetByID returns a run by id, or nil when absent.
func (r *RunRepo) GetByID(ctx context.Context, id string) (*model.ApplyRun, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM apply_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return run, nil
}

// Update applies the non-nil patch fields. A terminal status stamps ended_at
// unless the run already ended.
func (r *RunRepo) Update(ctx context.Context, id string, patch *model.RunPatch) (*model.ApplyRun, error) {
	if patch == nil {
		return nil, errors.New("patch is required")
	}

	set := []string{}
	args := []any{}
	idx := 1
	add := func(column string, value any) {
		set = append(set, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}

	if patch.CurrentURL != nil {
		add("current_url", *patch.CurrentURL)
	}
	if patch.ATSKind != nil {
		add("ats_kind", *patch.ATSKind)
	}
	if patch.Intent != nil {
		add("intent", *patch.Intent)
	}
	if patch.Stage != nil {
		add("stage", *patch.Stage)
	}
	if patch.FillRate != nil {
		add("fill_rate", *patch.FillRate)
	}
	if patch.FieldsAttempted != nil {
		add("fields_attempted", *patch.FieldsAttempted)
	}
	if patch.FieldsFilled != nil {
		add("fields_filled", *patch.FieldsFilled)
	}
	if patch.FieldsSkipped != nil {
		add("fields_skipped", *patch.FieldsSkipped)
	}
	if patch.FailureReason != nil {
		add("failure_reason", *patch.FailureReason)
	}

	now := r.timeProvider.Now()
	if patch.Status != nil {
		add("status", *patch.Status)
		if patch.Status.Terminal() {
			set = append(set, fmt.Sprintf("ended_at = COALESCE(ended_at, $%d)", idx))
			args = append(args, now)
			idx++
		}
	}
	add("updated_at", now)

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE apply_runs SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(set, ", "), idx, runColumns,
	)

	row := r.DB.QueryRowContext(ctx, query, args...)
	updated, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update run %s: %w", id, apperrors.MapDBError(err))
	}
	return updated, nil
}

// StaleInProgress returns in_progress runs last touched before cutoff.
func (r *RunRepo) StaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]*model.ApplyRun, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM apply_runs
		WHERE status = 'in_progress' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale runs: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	var runs []*model.ApplyRun
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan stale run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, fmt.Errorf("iterate stale runs: %w", iterErr)
	}
	return runs, nil
}

// DeleteTerminalBefore removes terminal runs whose last update is older than
// cutoff. Their observability events go with them through the cascade.
func (r *RunRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM apply_runs
		WHERE status IN ('success', 'failed', 'abandoned') AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal runs: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("terminal runs rows affected: %w", err)
	}
	return int(n), nil
}
