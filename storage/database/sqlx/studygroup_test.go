package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/studygroup"
	"github.com/trezcool/campus/tests"
)

func Test_studyGroupRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	usrRepo := NewUserRepository(db)
	repo := NewStudyGroupRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	jane := testutil.CreateStudent(t, usrRepo, "Jane", "janedoe")
	john := testutil.CreateStudent(t, usrRepo, "John", "johndoe")
	mary := testutil.CreateStudent(t, usrRepo, "Mary", "marydoe")

	grp, err := repo.CreateGroup(ctx, studygroup.Group{
		Name:       "Algo Crew",
		CourseIDs:  []string{"c1"},
		CreatedBy:  jane.ID,
		MaxMembers: 2,
		Tags:       []string{"algorithms", "exams"},
		Meeting:    studygroup.Meeting{Schedule: "Fridays 5pm", Virtual: true, MeetingURL: "https://meet.campus.test/algo", Frequency: "weekly"},
		Members:    []studygroup.Member{{UserID: jane.ID, Name: "Jane", Role: studygroup.RoleAdmin, Status: studygroup.StatusActive, JoinedAt: now}},
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	require.NoError(t, err)
	other, err := repo.CreateGroup(ctx, studygroup.Group{
		Name:       "Late Night Physics",
		CreatedBy:  mary.ID,
		MaxMembers: 10,
		Members:    []studygroup.Member{{UserID: mary.ID, Name: "Mary", Role: studygroup.RoleAdmin, Status: studygroup.StatusActive, JoinedAt: now}},
		CreatedAt:  now.Add(time.Minute),
		UpdatedAt:  now.Add(time.Minute),
	})
	require.NoError(t, err)

	t.Run("get & query", func(t *testing.T) {
		g, err := repo.GetGroup(ctx, grp.ID)
		require.NoError(t, err)
		assert.Equal(t, "Algo Crew", g.Name)
		assert.Equal(t, []string{"algorithms", "exams"}, g.Tags)
		assert.Equal(t, "https://meet.campus.test/algo", g.Meeting.MeetingURL)
		require.Len(t, g.Members, 1)
		assert.True(t, g.IsAdmin(jane.ID))

		_, err = repo.GetGroup(ctx, "missing")
		assert.Equal(t, studygroup.ErrNotFound, errors.Cause(err))

		groups, err := repo.QueryGroups(ctx, studygroup.RepoFilter{})
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, other.ID, groups[0].ID) // newest first

		groups, err = repo.QueryGroups(ctx, studygroup.RepoFilter{MemberID: jane.ID})
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, grp.ID, groups[0].ID)
	})

	t.Run("membership", func(t *testing.T) {
		member := studygroup.Member{UserID: john.ID, Name: "John", Role: studygroup.RoleMember, Status: studygroup.StatusActive, JoinedAt: now.Add(time.Hour)}
		require.NoError(t, repo.AddMember(ctx, grp.ID, member))
		assert.Equal(t, studygroup.ErrAlreadyMember, errors.Cause(repo.AddMember(ctx, grp.ID, member)))
		assert.Equal(t, studygroup.ErrGroupFull, errors.Cause(repo.AddMember(ctx, grp.ID, studygroup.Member{UserID: mary.ID, JoinedAt: now})))
		assert.Equal(t, studygroup.ErrNotFound, errors.Cause(repo.AddMember(ctx, "missing", member)))

		g, err := repo.GetGroup(ctx, grp.ID)
		require.NoError(t, err)
		require.Len(t, g.Members, 2)
		assert.Equal(t, jane.ID, g.Members[0].UserID) // by join date
		assert.Equal(t, john.ID, g.Members[1].UserID)

		n, err := repo.CountGroups(ctx, john.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, repo.UpdateMemberRole(ctx, grp.ID, john.ID, studygroup.RoleAdmin))
		require.NoError(t, repo.RemoveMember(ctx, grp.ID, jane.ID))
		assert.Equal(t, studygroup.ErrNotMember, errors.Cause(repo.RemoveMember(ctx, grp.ID, jane.ID)))
		assert.Equal(t, studygroup.ErrNotMember, errors.Cause(repo.UpdateMemberRole(ctx, grp.ID, jane.ID, studygroup.RoleAdmin)))

		g, err = repo.GetGroup(ctx, grp.ID)
		require.NoError(t, err)
		require.Len(t, g.Members, 1)
		assert.True(t, g.IsAdmin(john.ID))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteGroup(ctx, other.ID))
		assert.Equal(t, studygroup.ErrNotFound, errors.Cause(repo.DeleteGroup(ctx, other.ID)))

		n, err := repo.CountGroups(ctx, mary.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
