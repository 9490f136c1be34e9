package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobshield/jobshield/internal/domain/model"
	"github.com/jobshield/jobshield/internal/errors"
	"github.com/jobshield/jobshield/internal/testutil"
)

// createTestUser inserts a user for tests that need an owner row.
func createTestUser(t *testing.T, db *sql.DB) *model.User {
	t.Helper()

	repo := NewUserRepo(db, RepoConfig{})
	user, err := repo.Create(context.Background(), &model.User{
		ID:    "user-" + uuid.NewString(),
		Email: uuid.NewString() + "@example.com",
	})
	require.NoError(t, err)
	return user
}

func TestUserRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	repo := NewUserRepo(db, RepoConfig{})

	t.Run("successful creation", func(t *testing.T) {
		user, err := repo.Create(context.Background(), &model.User{
			ID:    "user-create-1",
			Email: "create-1@example.com",
		})
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "user-create-1", user.ID)
		assert.Equal(t, "create-1@example.com", user.Email)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := repo.Create(context.Background(), &model.User{Email: "noid@example.com"})
		require.Error(t, err)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		_, err := repo.Create(context.Background(), &model.User{
			ID:    "user-create-1",
			Email: "other@example.com",
		})
		require.Error(t, err)
		assert.True(t, errors.IsConflict(err))
	})
}

func TestUserRepo_GetByID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	repo := NewUserRepo(db, RepoConfig{})
	user := createTestUser(t, db)

	t.Run("found", func(t *testing.T) {
		got, err := repo.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.Email, got.Email)
	})

	t.Run("absent returns nil", func(t *testing.T) {
		got, err := repo.GetByID(context.Background(), "no-such-user")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestUserRepo_Exists(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	repo := NewUserRepo(db, RepoConfig{})
	user := createTestUser(t, db)

	exists, err := repo.Exists(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(context.Background(), "no-such-user")
	require.NoError(t, err)
	assert.False(t, exists)
}
