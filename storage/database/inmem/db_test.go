package inmemdb_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/studygroup"
	inmemdb "github.com/trezcool/campus/storage/database/inmem"
	testutil "github.com/trezcool/campus/tests"
)

func Test_courseRepository_emptySlices(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewCourseRepository(inmemdb.Open())

	now := time.Now().UTC()
	created, err := repo.CreateCourse(ctx, course.Course{
		Name:          "Go 101",
		Schedule:      []course.Slot{},
		Prerequisites: []string{},
		Tags:          []string{},
		Capacity:      10,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)

	check := func(t *testing.T, c course.Course) {
		assert.NotNil(t, c.Schedule)
		assert.NotNil(t, c.Prerequisites)
		assert.NotNil(t, c.Tags)

		data, err := json.Marshal(c)
		require.NoError(t, err)
		var fields map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &fields))
		assert.JSONEq(t, `[]`, string(fields["schedule"]))
		assert.JSONEq(t, `[]`, string(fields["tags"]))
	}

	got, err := repo.GetCourse(ctx, created.ID)
	require.NoError(t, err)
	check(t, got)

	courses, err := repo.QueryCourses(ctx, course.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	check(t, courses[0])
}

func Test_courseRepository_copies(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewCourseRepository(inmemdb.Open())

	created, err := repo.CreateCourse(ctx, course.Course{
		Name:     "Go 101",
		Schedule: []course.Slot{{Day: "Monday", StartTime: "09:00"}},
		Tags:     []string{"go"},
		Capacity: 10,
	})
	require.NoError(t, err)

	got, err := repo.GetCourse(ctx, created.ID)
	require.NoError(t, err)
	got.Schedule[0].Day = "Friday"
	got.Tags[0] = "rust"

	again, err := repo.GetCourse(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Monday", again.Schedule[0].Day)
	assert.Equal(t, []string{"go"}, again.Tags)
}

func Test_courseRepository_enrollments(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	repo := inmemdb.NewCourseRepository(db)
	jane := testutil.CreateStudent(t, usrRepo, "Jane", "jane_doe")
	john := testutil.CreateStudent(t, usrRepo, "John", "john_doe")

	c, err := repo.CreateCourse(ctx, course.Course{Name: "Go 101", Capacity: 1})
	require.NoError(t, err)

	_, err = repo.CreateEnrollment(ctx, course.Enrollment{UserID: jane.ID, CourseID: c.ID})
	require.NoError(t, err)
	_, err = repo.CreateEnrollment(ctx, course.Enrollment{UserID: jane.ID, CourseID: c.ID})
	assert.Equal(t, course.ErrAlreadyEnrolled, errors.Cause(err))
	_, err = repo.CreateEnrollment(ctx, course.Enrollment{UserID: john.ID, CourseID: c.ID})
	assert.Equal(t, course.ErrCourseFull, errors.Cause(err))
	_, err = repo.CreateEnrollment(ctx, course.Enrollment{UserID: john.ID, CourseID: "missing"})
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))

	// deleting a user frees their seats
	n, err := usrRepo.DeleteUsersByID(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := repo.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Enrolled)

	_, err = repo.CreateEnrollment(ctx, course.Enrollment{UserID: john.ID, CourseID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, course.ErrNotEnrolled, errors.Cause(repo.DeleteEnrollment(ctx, jane.ID, c.ID)))
}

func Test_studyGroupRepository_emptySlices(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewStudyGroupRepository(inmemdb.Open())

	created, err := repo.CreateGroup(ctx, studygroup.Group{
		Name:       "Algo Club",
		CourseIDs:  []string{},
		Tags:       []string{},
		Members:    []studygroup.Member{{UserID: "u1", Role: studygroup.RoleAdmin}},
		MaxMembers: 2,
	})
	require.NoError(t, err)

	got, err := repo.GetGroup(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.CourseIDs)
	assert.Equal(t, []string{}, got.Tags)
	require.Len(t, got.Members, 1)

	require.NoError(t, repo.AddMember(ctx, created.ID, studygroup.Member{UserID: "u2", Role: studygroup.RoleMember}))
	assert.Equal(t, studygroup.ErrGroupFull, errors.Cause(repo.AddMember(ctx, created.ID, studygroup.Member{UserID: "u3"})))
	assert.Equal(t, studygroup.ErrAlreadyMember, errors.Cause(repo.AddMember(ctx, created.ID, studygroup.Member{UserID: "u2"})))

	require.NoError(t, repo.RemoveMember(ctx, created.ID, "u1"))
	assert.Equal(t, studygroup.ErrNotMember, errors.Cause(repo.RemoveMember(ctx, created.ID, "u1")))
	got, err = repo.GetGroup(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 1)
	assert.Equal(t, "u2", got.Members[0].UserID)
}
