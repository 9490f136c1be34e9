package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jobshield/jobshield/internal/bootstrap"
	"github.com/jobshield/jobshield/internal/data"
	"github.com/jobshield/jobshield/internal/domain/decision"
	"github.com/jobshield/jobshield/internal/domain/model"
	"github.com/jobshield/jobshield/internal/service"
)

const defaultQueueTimeout = 30 * time.Second

type queueOptions struct {
	Timeout time.Duration
	UserID  string
	Status  string
	Limit   int
}

type statsOptions struct {
	Timeout time.Duration
	UserID  string
}

type requeueOptions struct {
	Timeout time.Duration
	TaskID  string
	Reason  string
	Yes     bool
}

type scoreOptions struct {
	Timeout time.Duration
	JobID   string
}

func runQueue(cmdCtx *commandContext, args []string) error {
	opts, err := parseQueueFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		listOpts := model.ListTasksOptions{
			UserID: opts.UserID,
			Limit:  opts.Limit,
		}
		if opts.Status != "" {
			status := model.TaskStatus(opts.Status)
			if !status.Valid() {
				return fmt.Errorf("unknown task status %q", opts.Status)
			}
			listOpts.Status = &status
		}

		repo := data.NewTaskRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})
		tasks, total, listErr := repo.List(ctx, listOpts)
		if listErr != nil {
			return fmt.Errorf("list tasks: %w", listErr)
		}

		if len(tasks) == 0 {
			return writef(os.Stdout, "No tasks found for user %q.\n", opts.UserID)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if werr := writeln(tw, "TASK ID\tJOB ID\tSTATUS\tPRIORITY\tATTEMPTS\tCREATED\tLAST ERROR"); werr != nil {
			return werr
		}
		for _, task := range tasks {
			lastErr := ""
			if task.LastError != nil {
				lastErr = *task.LastError
			}
			if werr := writef(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				task.ID,
				task.JobID,
				task.Status,
				task.Priority,
				task.AttemptCount,
				task.CreatedAt.Format(time.RFC3339),
				lastErr,
			); werr != nil {
				return werr
			}
		}
		if ferr := tw.Flush(); ferr != nil {
			return fmt.Errorf("flush task table: %w", ferr)
		}

		return writef(os.Stdout, "\nShowing %d of %d tasks.\n", len(tasks), total)
	})
}

func runStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatsFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewTaskRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})

		var (
			stats    *model.TaskStats
			statsErr error
			scope    string
		)
		if opts.UserID == "" {
			stats, statsErr = repo.GlobalStats(ctx)
			scope = "all users"
		} else {
			stats, statsErr = repo.Stats(ctx, opts.UserID)
			scope = fmt.Sprintf("user %q", opts.UserID)
		}
		if statsErr != nil {
			return fmt.Errorf("task stats: %w", statsErr)
		}

		if werr := writef(os.Stdout, "Task counts for %s:\n", scope); werr != nil {
			return werr
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		rows := []struct {
			label string
			count int
		}{
			{"queued", stats.Queued},
			{"in_progress", stats.InProgress},
			{"needs_user", stats.NeedsUser},
			{"success", stats.Success},
			{"failed", stats.Failed},
			{"canceled", stats.Canceled},
		}
		for _, row := range rows {
			if werr := writef(tw, "  %s\t%d\n", row.label, row.count); werr != nil {
				return werr
			}
		}
		return tw.Flush()
	})
}

func runRequeue(cmdCtx *commandContext, args []string) error {
	opts, err := parseRequeueFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		svc, buildErr := newTaskService(db, cmdCtx)
		if buildErr != nil {
			return buildErr
		}

		task, getErr := svc.Get(ctx, opts.TaskID)
		if getErr != nil {
			return fmt.Errorf("load task %s: %w", opts.TaskID, getErr)
		}
		if task.Status != model.TaskStatusFailed {
			return fmt.Errorf("task %s is %s; only failed tasks can be requeued", task.ID, task.Status)
		}

		if confirmErr := confirmAction(
			opts.Yes,
			fmt.Sprintf("requeue task %s (job %s, %d prior attempts)", task.ID, task.JobID, task.AttemptCount),
		); confirmErr != nil {
			return confirmErr
		}

		reason := opts.Reason
		updated, event, transErr := svc.Transition(ctx, &model.TransitionRequest{
			TaskID:   task.ID,
			ToStatus: model.TaskStatusQueued,
			Reason:   &reason,
		})
		if transErr != nil {
			return fmt.Errorf("requeue task %s: %w", task.ID, transErr)
		}

		return writef(os.Stdout, "Task %s requeued (event %s, status %s).\n",
			updated.ID, event.ID, updated.Status)
	})
}

func runScore(cmdCtx *commandContext, args []string) error {
	opts, err := parseScoreFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		postings := data.NewJobPostingRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})
		posting, getErr := postings.GetByID(ctx, opts.JobID)
		if getErr != nil {
			return fmt.Errorf("load posting %s: %w", opts.JobID, getErr)
		}

		table, tableErr := bootstrap.LoadRuleTable(cmdCtx.Config.Scoring, cmdCtx.Logger)
		if tableErr != nil {
			return fmt.Errorf("load rule table: %w", tableErr)
		}
		scorer, scorerErr := service.NewScorerService(service.ScorerServiceOptions{
			Table:    table,
			Postings: postings,
			Logger:   cmdCtx.Logger,
		})
		if scorerErr != nil {
			return fmt.Errorf("create scorer: %w", scorerErr)
		}

		record := posting.Record
		if record == nil {
			record = &model.JobRecord{
				JobID:    posting.JobID,
				URL:      posting.URL,
				Platform: posting.Platform,
			}
		}

		scored, scoreErr := scorer.ScoreAndStore(ctx, record)
		if scoreErr != nil {
			return fmt.Errorf("score posting %s: %w", opts.JobID, scoreErr)
		}

		if werr := writef(os.Stdout, "Job %s scored %.1f (%s, confidence %s)\n%s\n",
			opts.JobID, scored.AuthenticityScore, scored.Level, scored.Confidence, scored.Summary); werr != nil {
			return werr
		}
		for _, redFlag := range scored.RedFlags {
			if werr := writef(os.Stdout, "  red flag: %s\n", redFlag); werr != nil {
				return werr
			}
		}
		for _, signal := range scored.PositiveSignals {
			if werr := writef(os.Stdout, "  positive: %s\n", signal); werr != nil {
				return werr
			}
		}

		explained := decision.Explain(scored, record)
		if werr := writef(os.Stdout, "Recommendation: %s\n", explained.Decision); werr != nil {
			return werr
		}
		for _, reason := range explained.Reasons {
			if werr := writef(os.Stdout, "  reason: %s\n", reason); werr != nil {
				return werr
			}
		}
		for _, risk := range explained.Risks {
			if werr := writef(os.Stdout, "  risk: %s\n", risk); werr != nil {
				return werr
			}
		}
		return nil
	})
}

func newTaskService(db *sql.DB, cmdCtx *commandContext) (*service.TaskService, error) {
	repoCfg := data.RepoConfig{Logger: cmdCtx.Logger}
	svc, err := service.NewTaskService(service.TaskServiceOptions{
		Tasks:    data.NewTaskRepo(db, repoCfg),
		Postings: data.NewJobPostingRepo(db, repoCfg),
		Users:    data.NewUserRepo(db, repoCfg),
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create task service: %w", err)
	}
	return svc, nil
}

func parseQueueFlags(args []string) (queueOptions, error) {
	fs := flag.NewFlagSet("queue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := queueOptions{Timeout: defaultQueueTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueueTimeout, "Maximum duration to wait for the listing")
	fs.StringVar(&opts.UserID, "user", "", "User whose queue to list (required)")
	fs.StringVar(&opts.Status, "status", "", "Filter by task status (queued, in_progress, needs_user, success, failed, canceled)")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum number of tasks to list")

	if err := fs.Parse(args); err != nil {
		return queueOptions{}, err
	}
	if opts.Timeout <= 0 {
		return queueOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.UserID == "" {
		return queueOptions{}, errors.New("--user is required")
	}
	if opts.Limit <= 0 {
		return queueOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

func parseStatsFlags(args []string) (statsOptions, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := statsOptions{Timeout: defaultQueueTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueueTimeout, "Maximum duration to wait for the stats query")
	fs.StringVar(&opts.UserID, "user", "", "User to count tasks for; omit for all users")

	if err := fs.Parse(args); err != nil {
		return statsOptions{}, err
	}
	if opts.Timeout <= 0 {
		return statsOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseRequeueFlags(args []string) (requeueOptions, error) {
	fs := flag.NewFlagSet("requeue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := requeueOptions{Timeout: defaultQueueTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueueTimeout, "Maximum duration to wait for the requeue")
	fs.StringVar(&opts.TaskID, "task", "", "Failed task to return to the queue (required)")
	fs.StringVar(&opts.Reason, "reason", "requeued by operator", "Reason recorded on the transition event")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return requeueOptions{}, err
	}
	if opts.Timeout <= 0 {
		return requeueOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.TaskID == "" {
		return requeueOptions{}, errors.New("--task is required")
	}
	return opts, nil
}

func parseScoreFlags(args []string) (scoreOptions, error) {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := scoreOptions{Timeout: defaultQueueTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueueTimeout, "Maximum duration to wait for scoring")
	fs.StringVar(&opts.JobID, "job", "", "Stored posting to score (required)")

	if err := fs.Parse(args); err != nil {
		return scoreOptions{}, err
	}
	if opts.Timeout <= 0 {
		return scoreOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.JobID == "" {
		return scoreOptions{}, errors.New("--job is required")
	}
	return opts, nil
}
