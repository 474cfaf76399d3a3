package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/tests"
)

func Test_userRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewUserRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	jane := testutil.CreateUser(t, repo, "Jane Doe", "janedoe", "jane@campus.test", "Pa55w0rd!", []string{user.RoleStudent}, true, now)
	boss := testutil.CreateUser(t, repo, "The Boss", "theboss", "boss@campus.test", "", []string{user.RoleAdminOwner}, true, now.Add(time.Hour))
	nobody := testutil.CreateUser(t, repo, "Nobody", "", "", "", nil, false, now.Add(2*time.Hour))

	t.Run("get", func(t *testing.T) {
		usr, err := repo.GetUser(ctx, user.GetFilter{ID: jane.ID})
		require.NoError(t, err)
		assert.Equal(t, "janedoe", usr.Username)
		assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
		assert.Equal(t, user.DefaultPreferences(), usr.Preferences)
		assert.NoError(t, usr.CheckPassword("Pa55w0rd!"))
		assert.True(t, usr.LastLogin.IsZero())

		usr, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "boss@campus.test"})
		require.NoError(t, err)
		assert.Equal(t, boss.ID, usr.ID)

		_, err = repo.GetUser(ctx, user.GetFilter{Username: "ghost"})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "janedoe", "new@campus.test"))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "newbie", "jane@campus.test"))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "janedoe", "jane@campus.test", jane))
		// users without username nor email do not clash
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "", ""))
		testutil.CreateUser(t, repo, "Nobody Else", "", "", "", nil, true)
	})

	t.Run("query", func(t *testing.T) {
		users, err := repo.QueryUsers(ctx, nil, nil)
		require.NoError(t, err)
		require.Len(t, users, 4)

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{Search: "DOE"}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, jane.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{Roles: []string{user.RoleAdmin}}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, boss.ID, users[0].ID)

		inactive := false
		users, err = repo.QueryUsers(ctx, &user.QueryFilter{IsActive: &inactive}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, nobody.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{CreatedFrom: now.Add(30 * time.Minute), CreatedTo: now.Add(90 * time.Minute)}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, boss.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{IDs: []string{jane.ID, boss.ID}},
			[]core.DBOrdering{{Field: "name", Ascending: true}, {Field: "password_hash; DROP TABLE users"}})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, jane.ID, users[0].ID)
		assert.Equal(t, boss.ID, users[1].ID)
	})

	t.Run("update", func(t *testing.T) {
		usr := jane
		usr.Name = "Jane D."
		usr.PhotoURL = "https://img.campus.test/jane.png"
		usr.LastLogin = now.Add(time.Minute)
		usr.Roles = []string{user.RoleStudent, user.RoleAdmin}
		usr.Preferences.Theme = user.ThemeDark

		updated, err := repo.UpdateUser(ctx, usr)
		require.NoError(t, err)
		assert.Equal(t, "Jane D.", updated.Name)
		assert.True(t, now.Add(time.Minute).Equal(updated.LastLogin))
		assert.Equal(t, user.ThemeDark, updated.Preferences.Theme)
		assert.True(t, updated.IsAdmin())
		assert.True(t, jane.CreatedAt.Equal(updated.CreatedAt))

		require.NoError(t, repo.SetLastSeen(ctx, jane.ID, now.Add(2*time.Minute)))
		updated, err = repo.GetUser(ctx, user.GetFilter{ID: jane.ID})
		require.NoError(t, err)
		assert.True(t, now.Add(2*time.Minute).Equal(updated.LastSeen))

		_, err = repo.UpdateUser(ctx, user.User{ID: "missing"})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
		assert.Equal(t, user.ErrNotFound, repo.SetLastSeen(ctx, "missing", now))
	})

	t.Run("delete", func(t *testing.T) {
		n, err := repo.DeleteUsersByID(ctx, nobody.ID, "missing")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = repo.GetUser(ctx, user.GetFilter{ID: nobody.ID})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}
