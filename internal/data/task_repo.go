package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jobshield/jobshield/internal/data/database"
	"github.com/jobshield/jobshield/internal/data/pgxutil"
	"github.com/jobshield/jobshield/internal/domain/model"
	apperrors "github.com/jobshield/jobshield/internal/errors"
)

// RepoConfig holds shared configuration options for repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// TaskRepo provides database operations for apply tasks and their
// append-only event log.
type TaskRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewTaskRepo creates a new TaskRepo instance.
func NewTaskRepo(db *sql.DB, cfg RepoConfig) *TaskRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &TaskRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const taskColumns = `
  id,
  user_id,
  job_id,
  status,
  priority,
  attempt_count,
  last_error,
  task_metadata,
  created_at,
  updated_at
`

const taskEventColumns = `
  id,
  task_id,
  from_status,
  to_status,
  reason,
  details,
  created_at
`

func scanTask(row interface{ Scan(...any) error }) (*model.Task, error) {
	var task model.Task
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.JobID,
		&task.Status,
		&task.Priority,
		&task.AttemptCount,
		&task.LastError,
		&task.Metadata,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func scanTaskEvent(row interface{ Scan(...any) error }) (*model.TaskEvent, error) {
	var event model.TaskEvent
	err := row.Scan(
		&event.ID,
		&event.TaskID,
		&event.FromStatus,
		&event.ToStatus,
		&event.Reason,
		&event.Details,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// InsertBatch creates the tasks and their initial none->queued events in one
// transaction. Either every row persists or none does.
func (r *TaskRepo) InsertBatch(ctx context.Context, tasks []*model.Task) ([]*model.Task, error) {
	if len(tasks) == 0 {
		return []*model.Task{}, nil
	}
	for _, task := range tasks {
		if task.UserID == "" {
			return nil, ErrUserIDRequired
		}
		if task.JobID == "" {
			return nil, ErrJobIDRequired
		}
	}

	created := make([]*model.Task, 0, len(tasks))
	txErr := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			for _, task := range tasks {
				row := tx.QueryRowContext(ctx, `
					INSERT INTO tasks (id, user_id, job_id, status, priority, attempt_count, task_metadata, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
					RETURNING `+taskColumns,
					task.ID, task.UserID, task.JobID, task.Status, task.Priority,
					task.AttemptCount, nullableJSON(task.Metadata), task.CreatedAt, task.UpdatedAt,
				)
				inserted, scanErr := scanTask(row)
				if scanErr != nil {
					return fmt.Errorf("insert task for job %s: %w", task.JobID, apperrors.MapDBError(scanErr))
				}

				if _, eventErr := tx.ExecContext(ctx, `
					INSERT INTO task_events (id, task_id, from_status, to_status, created_at)
					VALUES ($1, $2, $3, $4, $5)`,
					uuid.NewString(), inserted.ID, model.TaskStatusNone, model.TaskStatusQueued, inserted.CreatedAt,
				); eventErr != nil {
					return fmt.Errorf("insert initial event for task %s: %w", inserted.ID, apperrors.MapDBError(eventErr))
				}
				created = append(created, inserted)
			}
			return nil
		},
	})
	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// GetByID returns a task by id, or nil when absent.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*model.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return task, nil
}

// List returns one queue page ordered by priority descending then created_at
// ascending, plus the total count over the same filter.
func (r *TaskRepo) List(ctx context.Context, opts model.ListTasksOptions) ([]*model.Task, int, error) {
	conditions := []database.Condition{
		database.WhereCond("user_id", database.Equal, opts.UserID),
	}
	if opts.Status != nil {
		conditions = append(conditions, database.WhereCond("status", database.Equal, *opts.Status))
	}

	countQuery, countArgs := database.BuildListQuery(database.NewListQueryOptions("tasks",
		database.WithCountOnly(),
		database.WithConditions(conditions...),
	))
	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", apperrors.MapDBError(err))
	}

	query, args := database.BuildListQuery(database.NewListQueryOptions("tasks",
		database.WithColumns("id", "user_id", "job_id", "status", "priority",
			"attempt_count", "last_error", "task_metadata", "created_at", "updated_at"),
		database.WithConditions(conditions...),
		database.WithOrderBy("priority", "DESC", "created_at", "ASC"),
		database.WithLimit(opts.Limit),
		database.WithOffset(opts.Offset),
	))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	var tasks []*model.Task
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("scan task: %w", scanErr)
		}
		tasks = append(tasks, task)
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, 0, fmt.Errorf("iterate tasks: %w", iterErr)
	}
	return tasks, total, nil
}

// ActiveJobIDs returns the subset of jobIDs that already have a task in a
// live state for the user.
func (r *TaskRepo) ActiveJobIDs(ctx context.Context, userID string, jobIDs []string) (map[string]bool, error) {
	active := make(map[string]bool)
	if len(jobIDs) == 0 {
		return active, nil
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT DISTINCT job_id
		FROM tasks
		WHERE user_id = $1
		  AND job_id = ANY($2)
		  AND status IN ('queued', 'in_progress', 'needs_user')`,
		userID, jobIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query active tasks: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	for rows.Next() {
		var jobID string
		if scanErr := rows.Scan(&jobID); scanErr != nil {
			return nil, fmt.Errorf("scan active job id: %w", scanErr)
		}
		active[jobID] = true
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, fmt.Errorf("iterate active job ids: %w", iterErr)
	}
	return active, nil
}

// Transition applies one guarded status change and appends its event in one
// transaction. The UPDATE carries a compare-and-swap on the prior status; when
// no row matches, the freshly loaded task is returned with ok=false so the
// caller can diagnose the race.
func (r *TaskRepo) Transition(ctx context.Context, task *model.Task, req *model.TransitionRequest) (*model.Task, *model.TaskEvent, bool, error) {
	now := r.timeProvider.Now()

	var (
		updated *model.Task
		event   *model.TaskEvent
		won     bool
	)
	txErr := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			row := tx.QueryRowContext(ctx, `
				UPDATE tasks
				SET status = $1,
				    attempt_count = attempt_count + CASE WHEN $1 = 'in_progress' THEN 1 ELSE 0 END,
				    last_error = CASE WHEN $1 = 'failed' THEN $2 ELSE last_error END,
				    updated_at = $3
				WHERE id = $4 AND status = $5
				RETURNING `+taskColumns,
				req.ToStatus, req.Reason, now, task.ID, task.Status,
			)
			result, scanErr := scanTask(row)
			if errors.Is(scanErr, sql.ErrNoRows) {
				// Lost the CAS; the task moved underneath us.
				return nil
			}
			if scanErr != nil {
				return fmt.Errorf("update task %s: %w", task.ID, apperrors.MapDBError(scanErr))
			}

			eventRow := tx.QueryRowContext(ctx, `
				INSERT INTO task_events (id, task_id, from_status, to_status, reason, details, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING `+taskEventColumns,
				uuid.NewString(), result.ID, task.Status, req.ToStatus, req.Reason, nullableJSON(req.Details), now,
			)
			insertedEvent, eventErr := scanTaskEvent(eventRow)
			if eventErr != nil {
				return fmt.Errorf("insert event for task %s: %w", task.ID, apperrors.MapDBError(eventErr))
			}

			updated = result
			event = insertedEvent
			won = true
			return nil
		},
	})
	if txErr != nil {
		return nil, nil, false, txErr
	}
	if !won {
		fresh, err := r.GetByID(ctx, task.ID)
		if err != nil {
			return nil, nil, false, err
		}
		return fresh, nil, false, nil
	}
	return updated, event, true, nil
}

// ListEvents returns a task's transition log in append order.
func (r *TaskRepo) ListEvents(ctx context.Context, taskID string) ([]*model.TaskEvent, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskEventColumns+` FROM task_events WHERE task_id = $1 ORDER BY seq ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task events: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	var events []*model.TaskEvent
	for rows.Next() {
		event, scanErr := scanTaskEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan task event: %w", scanErr)
		}
		events = append(events, event)
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, fmt.Errorf("iterate task events: %w", iterErr)
	}
	return events, nil
}

// Stats counts the user's tasks per status.
func (r *TaskRepo) Stats(ctx context.Context, userID string) (*model.TaskStats, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM tasks
		WHERE user_id = $1
		GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	return r.scanStats(rows)
}

// GlobalStats counts tasks per status across all users, used for queue gauges.
func (r *TaskRepo) GlobalStats(ctx context.Context) (*model.TaskStats, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM tasks
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("global task stats: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	return r.scanStats(rows)
}

func (r *TaskRepo) scanStats(rows *sql.Rows) (*model.TaskStats, error) {
	stats := &model.TaskStats{}
	for rows.Next() {
		var (
			status model.TaskStatus
			count  int
		)
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("scan task stats: %w", scanErr)
		}
		switch status {
		case model.TaskStatusQueued:
			stats.Queued = count
		case model.TaskStatusInProgress:
			stats.InProgress = count
		case model.TaskStatusNeedsUser:
			stats.NeedsUser = count
		case model.TaskStatusSuccess:
			stats.Success = count
		case model.TaskStatusFailed:
			stats.Failed = count
		case model.TaskStatusCanceled:
			stats.Canceled = count
		}
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, fmt.Errorf("iterate task stats: %w", iterErr)
	}
	return stats, nil
}

// StaleInProgress returns tasks sitting in in_progress since before cutoff.
func (r *TaskRepo) StaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]*model.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = 'in_progress' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale tasks: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	var tasks []*model.Task
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan stale task: %w", scanErr)
		}
		tasks = append(tasks, task)
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, fmt.Errorf("iterate stale tasks: %w", iterErr)
	}
	return tasks, nil
}

// DeleteTerminalBefore removes terminal tasks whose last update is older than
// cutoff. Their events go with them through the cascade.
func (r *TaskRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE status IN ('success', 'canceled') AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal tasks: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("terminal tasks rows affected: %w", err)
	}
	return int(n), nil
}

// nullableJSON maps empty raw JSON to NULL so optional JSONB columns stay null.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// closeRows closes rows and logs any failure rather than masking the caller's error.
func closeRows(rows *sql.Rows, logger *slog.Logger) {
	if err := rows.Close(); err != nil && logger != nil {
		logger.Warn("close rows failed", "error", err)
	}
}
