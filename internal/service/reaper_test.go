package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/jobshield/jobshield/config"
	"github.com/jobshield/jobshield/internal/domain/model"
)

func reaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:     time.Minute,
		TaskMaxAge:   time.Hour,
		RunMaxAge:    2 * time.Hour,
		RetentionAge: 24 * time.Hour,
		BatchSize:    100,
	}
}

func newReaperFixture(t *testing.T) (*ReaperService, *memTaskRepo, *memRunRepo, *memEventRepo) {
	t.Helper()
	taskRepo := newMemTaskRepo()
	runRepo := newMemRunRepo()
	eventRepo := newMemEventRepo()

	taskSvc, err := NewTaskService(TaskServiceOptions{
		Tasks:    taskRepo,
		Postings: newMemPostingRepo(),
		Users:    newMemUserRepo("user-1"),
	})
	require.NoError(t, err)

	svc, err := NewReaperService(ReaperServiceOptions{
		Tasks:    taskSvc,
		TaskRepo: taskRepo,
		Runs:     runRepo,
		Events:   eventRepo,
		Config:   reaperConfig(),
	})
	require.NoError(t, err)
	return svc, taskRepo, runRepo, eventRepo
}

func seedTask(repo *memTaskRepo, status model.TaskStatus, updatedAt time.Time) *model.Task {
	task := &model.Task{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		JobID:     uuid.NewString(),
		Status:    status,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
	repo.tasks[task.ID] = task
	return task
}

func seedRun(repo *memRunRepo, status model.RunStatus, updatedAt time.Time) *model.ApplyRun {
	run := &model.ApplyRun{
		ID:         uuid.NewString(),
		UserID:     "user-1",
		InitialURL: "https://jobs.example.com/apply/123",
		CurrentURL: "https://jobs.example.com/apply/123",
		Status:     status,
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}
	repo.runs[run.ID] = run
	return run
}

func TestNewReaperService(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{})
	assert.ErrorContains(t, err, "TaskService is required")
}

func TestReaperFailsStaleTasks(t *testing.T) {
	ctx := context.Background()
	svc, taskRepo, _, _ := newReaperFixture(t)

	stale := seedTask(taskRepo, model.TaskStatusInProgress, time.Now().Add(-2*time.Hour))
	fresh := seedTask(taskRepo, model.TaskStatusInProgress, time.Now().Add(-time.Minute))
	queued := seedTask(taskRepo, model.TaskStatusQueued, time.Now().Add(-2*time.Hour))

	require.NoError(t, svc.runCleanup(ctx))

	got, err := taskRepo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "no progress")

	// Failing goes through the FSM, so the transition is on the event log.
	events, err := taskRepo.ListEvents(ctx, stale.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.TaskStatusInProgress, last.FromStatus)
	assert.Equal(t, model.TaskStatusFailed, last.ToStatus)

	got, err = taskRepo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, got.Status)

	got, err = taskRepo.GetByID(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusQueued, got.Status)
}

func TestReaperAbandonsStaleRuns(t *testing.T) {
	ctx := context.Background()
	svc, _, runRepo, _ := newReaperFixture(t)

	stale := seedRun(runRepo, model.RunStatusInProgress, time.Now().Add(-3*time.Hour))
	fresh := seedRun(runRepo, model.RunStatusInProgress, time.Now().Add(-time.Minute))

	require.NoError(t, svc.runCleanup(ctx))

	got, err := runRepo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusAbandoned, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Contains(t, *got.FailureReason, "no progress")
	assert.NotNil(t, got.EndedAt)

	got, err = runRepo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusInProgress, got.Status)
}

func TestReaperPurgesExpiredRows(t *testing.T) {
	ctx := context.Background()
	svc, taskRepo, runRepo, eventRepo := newReaperFixture(t)

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Hour)

	expiredTask := seedTask(taskRepo, model.TaskStatusSuccess, old)
	keptTask := seedTask(taskRepo, model.TaskStatusSuccess, recent)
	activeOldTask := seedTask(taskRepo, model.TaskStatusQueued, old)

	expiredRun := seedRun(runRepo, model.RunStatusFailed, old)
	keptRun := seedRun(runRepo, model.RunStatusFailed, recent)

	_, err := eventRepo.Insert(ctx, &model.ObservabilityEvent{
		ID: uuid.NewString(), RunID: expiredRun.ID, UserID: "user-1",
		Source: model.SourceBackend, Severity: model.SeverityInfo,
		EventName: "page_detected", TS: old,
	})
	require.NoError(t, err)
	_, err = eventRepo.Insert(ctx, &model.ObservabilityEvent{
		ID: uuid.NewString(), RunID: keptRun.ID, UserID: "user-1",
		Source: model.SourceBackend, Severity: model.SeverityInfo,
		EventName: "page_detected", TS: recent,
	})
	require.NoError(t, err)

	require.NoError(t, svc.runCleanup(ctx))

	got, err := taskRepo.GetByID(ctx, expiredTask.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = taskRepo.GetByID(ctx, keptTask.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	// Non-terminal rows are never purged regardless of age.
	got, err = taskRepo.GetByID(ctx, activeOldTask.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)

	gotRun, err := runRepo.GetByID(ctx, expiredRun.ID)
	require.NoError(t, err)
	assert.Nil(t, gotRun)
	gotRun, err = runRepo.GetByID(ctx, keptRun.ID)
	require.NoError(t, err)
	assert.NotNil(t, gotRun)

	events, err := eventRepo.ListByRun(ctx, keptRun.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	events, err = eventRepo.ListByRun(ctx, expiredRun.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	svc, _, _, _ := newReaperFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}
}
