package boiledrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/user"
	boiledrepos "github.com/trezcool/recqa/storage/database/sqlboiler"
	testutil "github.com/trezcool/recqa/tests"
)

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := boiledrepos.NewUserRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	qa := testutil.CreateUser(t, repo, "Quinn", "qa@x.com", "Sup3r-Secret!pass", []string{user.RoleQA}, true, now.Add(-time.Hour))
	jane := testutil.CreateUser(t, repo, "Jane", "t.jane@x.com", "", []string{user.RoleTeacher}, false, now)

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUserExists, repo.CheckEmailUniqueness(ctx, "qa@x.com", nil))
		assert.NoError(t, repo.CheckEmailUniqueness(ctx, "qa@x.com", []user.User{qa}))
		assert.NoError(t, repo.CheckEmailUniqueness(ctx, "new@x.com", nil))

		_, err := repo.CreateUser(ctx, user.User{Name: "Dup", Email: "qa@x.com", CreatedAt: now, UpdatedAt: now})
		assert.Equal(t, user.ErrUserExists, err)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{Email: "qa@x.com"})
		require.NoError(t, err)
		assert.Equal(t, qa.ID, got.ID)
		assert.NoError(t, got.CheckPassword("Sup3r-Secret!pass"))

		_, err = repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("query", func(t *testing.T) {
		inactive := false
		users, err := repo.QueryUsers(ctx, &user.QueryFilter{IsActive: &inactive}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, jane.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{Search: "QUINN"}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, qa.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "created_at", Ascending: true}, {Field: "password_hash"}})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, []string{qa.ID, jane.ID}, []string{users[0].ID, users[1].ID})
	})

	t.Run("update and delete", func(t *testing.T) {
		jane.SetActive(true)
		jane.Name = "Jane Doe"
		updated, err := repo.UpdateUser(ctx, jane)
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", updated.Name)
		assert.True(t, *updated.IsActive)

		cnt, err := repo.DeleteUsersByID(ctx, []string{jane.ID, qa.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, cnt)
	})
}
