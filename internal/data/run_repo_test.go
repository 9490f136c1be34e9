package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobshield/jobshield/internal/domain/model"
	"github.com/jobshield/jobshield/internal/errors"
	"github.com/jobshield/jobshield/internal/testutil"
)

// createTestRun inserts an in_progress run owned by the given user.
func createTestRun(t *testing.T, db *sql.DB, userID string) *model.ApplyRun {
	t.Helper()

	repo := NewRunRepo(db, RepoConfig{})
	now := time.Now().UTC().Truncate(time.Microsecond)
	run, err := repo.Create(context.Background(), &model.ApplyRun{
		ID:         "run-" + uuid.NewString(),
		UserID:     userID,
		InitialURL: "https://jobs.example.com/apply/1",
		CurrentURL: "https://jobs.example.com/apply/1",
		Status:     model.RunStatusInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	require.NoError(t, err)
	return run
}

func TestRunRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := createTestUser(t, db)
	run := createTestRun(t, db, user.ID)

	assert.Equal(t, model.RunStatusInProgress, run.Status)
	assert.Equal(t, run.InitialURL, run.CurrentURL)
	assert.Nil(t, run.EndedAt)
	assert.Nil(t, run.ATSKind)
}

func TestRunRepo_Update(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	repo := NewRunRepo(db, RepoConfig{})
	user := createTestUser(t, db)

	t.Run("patches progress fields", func(t *testing.T) {
		run := createTestRun(t, db, user.ID)

		url := "https://jobs.example.com/apply/1/step-2"
		ats := "workday"
		stage := "questions"
		fillRate := 0.6
		attempted := 10
		filled := 6

		updated, err := repo.Update(context.Background(), run.ID, &model.RunPatch{
			CurrentURL:      &url,
			ATSKind:         &ats,
			Stage:           &stage,
			FillRate:        &fillRate,
			FieldsAttempted: &attempted,
			FieldsFilled:    &filled,
		})
		require.NoError(t, err)
		assert.Equal(t, url, updated.CurrentURL)
		require.NotNil(t, updated.ATSKind)
		assert.Equal(t, ats, *updated.ATSKind)
		require.NotNil(t, updated.FillRate)
		assert.InDelta(t, 0.6, *updated.FillRate, 0.001)
		assert.Nil(t, updated.EndedAt, "non-terminal patch must not end the run")
	})

	t.Run("terminal status stamps ended_at once", func(t *testing.T) {
		run := createTestRun(t, db, user.ID)

		failed := model.RunStatusFailed
		reason := "session lost"
		updated, err := repo.Update(context.Background(), run.ID, &model.RunPatch{
			Status:        &failed,
			FailureReason: &reason,
		})
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, updated.Status)
		require.NotNil(t, updated.EndedAt)
		firstEnd := *updated.EndedAt

		// A second terminal patch must not move ended_at.
		abandoned := model.RunStatusAbandoned
		updated, err = repo.Update(context.Background(), run.ID, &model.RunPatch{Status: &abandoned})
		require.NoError(t, err)
		require.NotNil(t, updated.EndedAt)
		assert.True(t, updated.EndedAt.Equal(firstEnd))
	})

	t.Run("unknown run", func(t *testing.T) {
		status := model.RunStatusSuccess
		_, err := repo.Update(context.Background(), "no-such-run", &model.RunPatch{Status: &status})
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestRunRepo_Reaping(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	repo := NewRunRepo(db, RepoConfig{})
	user := createTestUser(t, db)
	stale := createTestRun(t, db, user.ID)
	terminal := createTestRun(t, db, user.ID)

	success := model.RunStatusSuccess
	_, err := repo.Update(context.Background(), terminal.ID, &model.RunPatch{Status: &success})
	require.NoError(t, err)

	t.Run("stale in_progress runs", func(t *testing.T) {
		runs, staleErr := repo.StaleInProgress(context.Background(), time.Now().Add(time.Minute), 10)
		require.NoError(t, staleErr)
		require.Len(t, runs, 1)
		assert.Equal(t, stale.ID, runs[0].ID)
	})

	t.Run("purge removes only terminal runs", func(t *testing.T) {
		n, purgeErr := repo.DeleteTerminalBefore(context.Background(), time.Now().Add(time.Minute))
		require.NoError(t, purgeErr)
		assert.Equal(t, 1, n)

		remaining, getErr := repo.GetByID(context.Background(), stale.ID)
		require.NoError(t, getErr)
		assert.NotNil(t, remaining)
	})
}
