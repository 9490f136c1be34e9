package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jobshield/jobshield/internal/data/database"
	"github.com/jobshield/jobshield/internal/domain/model"
	apperrors "github.com/jobshield/jobshield/internal/errors"
)

// JobPostingRepo provides database operations for collected job postings and
// their persisted scoring results.
type JobPostingRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobPostingRepo creates a new JobPostingRepo instance.
func NewJobPostingRepo(db *sql.DB, cfg RepoConfig) *JobPostingRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &JobPostingRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobPostingColumns = `
  job_id,
  url,
  platform,
  record,
  score,
  posted_date,
  created_at,
  updated_at
`

func scanJobPosting(row interface{ Scan(...any) error }) (*model.JobPosting, error) {
	var (
		posting  model.JobPosting
		recordJS []byte
		scoreJS  []byte
	)
	err := row.Scan(
		&posting.JobID,
		&posting.URL,
		&posting.Platform,
		&recordJS,
		&scoreJS,
		&posting.PostedDate,
		&posting.CreatedAt,
		&posting.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(recordJS) > 0 {
		var record model.JobRecord
		if unmarshalErr := json.Unmarshal(recordJS, &record); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal job record: %w", unmarshalErr)
		}
		posting.Record = &record
	}
	if len(scoreJS) > 0 {
		var score model.ScoredJob
		if unmarshalErr := json.Unmarshal(scoreJS, &score); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal score: %w", unmarshalErr)
		}
		posting.Score = &score
	}
	return &posting, nil
}

// Upsert inserts or replaces a posting keyed by job_id. The persisted score
// is left untouched so rescoring is an explicit operation.
func (r *JobPostingRepo) Upsert(ctx context.Context, posting *model.JobPosting) (*model.JobPosting, error) {
	if posting == nil {
		return nil, errors.New("posting is required")
	}
	if posting.Record == nil {
		return nil, apperrors.Validation("posting record is required")
	}
	if err := posting.Record.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job record")
	}

	recordJS, err := json.Marshal(posting.Record)
	if err != nil {
		return nil, fmt.Errorf("marshal job record: %w", err)
	}

	platform := posting.Platform
	if platform == "" {
		platform = model.PlatformOther
	}

	now := r.timeProvider.Now()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO job_postings (job_id, url, platform, record, posted_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (job_id) DO UPDATE
		SET url = EXCLUDED.url,
		    platform = EXCLUDED.platform,
		    record = EXCLUDED.record,
		    posted_date = EXCLUDED.posted_date,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+jobPostingColumns,
		posting.JobID, posting.URL, platform, recordJS, posting.PostedDate, now,
	)
	upserted, scanErr := scanJobPosting(row)
	if scanErr != nil {
		return nil, fmt.Errorf("upsert posting %s: %w", posting.JobID, apperrors.MapDBError(scanErr))
	}
	return upserted, nil
}

// GetByID returns a posting by job id, or nil when absent.
func (r *JobPostingRepo) GetByID(ctx context.Context, jobID string) (*model.JobPosting, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+jobPostingColumns+` FROM job_postings WHERE job_id = $1`, jobID)
	posting, err := scanJobPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return posting, nil
}

// GetByIDs returns the postings found for the given job ids keyed by job id.
// Missing ids are simply absent from the map.
func (r *JobPostingRepo) GetByIDs(ctx context.Context, jobIDs []string) (map[string]*model.JobPosting, error) {
	found := make(map[string]*model.JobPosting)
	if len(jobIDs) == 0 {
		return found, nil
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+jobPostingColumns+` FROM job_postings WHERE job_id = ANY($1)`, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	for rows.Next() {
		posting, scanErr := scanJobPosting(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan posting: %w", scanErr)
		}
		found[posting.JobID] = posting
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, fmt.Errorf("iterate postings: %w", iterErr)
	}
	return found, nil
}

// SaveScore overwrites the posting's persisted scoring result.
func (r *JobPostingRepo) SaveScore(ctx context.Context, jobID string, score *model.ScoredJob) error {
	if score == nil {
		return apperrors.Validation("score is required")
	}
	scoreJS, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE job_postings
		SET score = $1, updated_at = $2
		WHERE job_id = $3`,
		scoreJS, r.timeProvider.Now(), jobID,
	)
	if err != nil {
		return fmt.Errorf("save score for %s: %w", jobID, apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save score rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFoundf("posting %s not found", jobID)
	}
	return nil
}

// List returns one page of postings ordered by newest first.
func (r *JobPostingRepo) List(ctx context.Context, limit, offset int) ([]*model.JobPosting, error) {
	query, args := database.BuildListQuery(database.NewListQueryOptions("job_postings",
		database.WithColumns("job_id", "url", "platform", "record", "score",
			"posted_date", "created_at", "updated_at"),
		database.WithOrderBy("created_at", "DESC"),
		database.WithLimit(limit),
		database.WithOffset(offset),
	))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	var postings []*model.JobPosting
	for rows.Next() {
		posting, scanErr := scanJobPosting(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan posting: %w", scanErr)
		}
		postings = append(postings, posting)
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, fmt.Errorf("iterate postings: %w", iterErr)
	}
	return postings, nil
}

// ListUnscored returns postings without a persisted score, oldest first, for
// the scorer worker to drain.
func (r *JobPostingRepo) ListUnscored(ctx context.Context, limit int) ([]*model.JobPosting, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+jobPostingColumns+`
		FROM job_postings
		WHERE score IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unscored postings: %w", apperrors.MapDBError(err))
	}
	defer closeRows(rows, r.logger)

	var postings []*model.JobPosting
	for rows.Next() {
		posting, scanErr := scanJobPosting(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan unscored posting: %w", scanErr)
		}
		postings = append(postings, posting)
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, fmt.Errorf("iterate unscored postings: %w", iterErr)
	}
	return postings, nil
}
