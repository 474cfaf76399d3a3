package account_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/account"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/studygroup"
	"github.com/trezcool/campus/core/timetable"
	"github.com/trezcool/campus/core/user"
	testutil "github.com/trezcool/campus/tests"
)

type fixture struct {
	svcs   *testutil.Services
	acct   *account.Service
	jane   user.User
	john   user.User
	course course.Course
	group  studygroup.Group
}

func setup(t *testing.T) fixture {
	svcs := testutil.NewServices(core.NewTestConfig(), nil)
	ctx := context.Background()
	f := fixture{
		svcs: svcs,
		acct: account.NewService(svcs.Users, svcs.Courses, svcs.Groups, svcs.TT, svcs.Activity),
		jane: testutil.CreateStudent(t, svcs.UsrRepo, "Jane", "jane_doe"),
		john: testutil.CreateStudent(t, svcs.UsrRepo, "John", "john_doe"),
	}

	var err error
	f.course, err = svcs.Courses.Create(ctx, f.john, course.NewCourse{
		Name:     "Go 101",
		Schedule: []course.Slot{{Day: "Monday", StartTime: "09:00"}},
	})
	require.NoError(t, err)
	_, err = svcs.Courses.Enroll(ctx, f.jane, f.course.ID)
	require.NoError(t, err)
	_, err = svcs.TT.Add(ctx, f.jane, timetable.NewEntry{Title: "Gym", Day: "Tuesday", StartTime: "18:00"})
	require.NoError(t, err)
	f.group, err = svcs.Groups.Create(ctx, f.jane, studygroup.NewGroup{Name: "Algo Club"})
	require.NoError(t, err)
	_, err = svcs.Groups.Join(ctx, f.john, f.group.ID)
	require.NoError(t, err)
	return f
}

func TestService_ClearData(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.acct.ClearData(ctx, f.jane))

	enrollments, err := f.svcs.Courses.ListEnrollments(ctx, f.jane)
	require.NoError(t, err)
	assert.Empty(t, enrollments)
	c, err := f.svcs.Courses.Get(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Enrolled)

	entries, err := f.svcs.TT.List(ctx, f.jane)
	require.NoError(t, err)
	assert.Empty(t, entries)

	acts, err := f.svcs.Activity.Recent(ctx, f.jane.ID, 0)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "Cleared account data", acts[0].Message)

	// the account & its groups are kept
	_, err = f.svcs.Users.GetByID(ctx, f.jane.ID)
	assert.NoError(t, err)
	g, err := f.svcs.Groups.Get(ctx, f.group.ID)
	require.NoError(t, err)
	assert.True(t, g.IsAdmin(f.jane.ID))
}

func TestService_DeleteAccount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.acct.DeleteAccount(ctx, f.jane))

	_, err := f.svcs.Users.GetByID(ctx, f.jane.ID)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	acts, err := f.svcs.Activity.Recent(ctx, f.jane.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, acts)

	c, err := f.svcs.Courses.Get(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Enrolled)

	g, err := f.svcs.Groups.Get(ctx, f.group.ID)
	require.NoError(t, err)
	require.Len(t, g.Members, 1)
	assert.True(t, g.IsAdmin(f.john.ID))
}
