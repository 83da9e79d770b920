package repository

import (
	"context"
	"testing"

	"raffler/models"
	"raffler/repository/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	t.Run("create fills id and timestamps", func(t *testing.T) {
		user := testutil.CreateTestUser("Ana Gomez")

		err := repo.Create(ctx, user)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.False(t, user.CreatedAt.IsZero())

		found, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, user.Name, found.Name)
		assert.Equal(t, user.Email, found.Email)
	})

	t.Run("duplicate phone is a conflict", func(t *testing.T) {
		first := testutil.CreateTestUser("First User")
		require.NoError(t, repo.Create(ctx, first))

		second := testutil.CreateTestUser("Second User")
		second.Phone = first.Phone

		err := repo.Create(ctx, second)
		assert.ErrorIs(t, err, models.ErrConflict)
		assert.Equal(t, "phone or email already registered", models.MessageOf(err))
	})

	t.Run("missing user returns nil", func(t *testing.T) {
		found, err := repo.GetByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}
