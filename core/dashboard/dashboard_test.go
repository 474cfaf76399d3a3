package dashboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/dashboard"
	"github.com/trezcool/campus/core/studygroup"
	testutil "github.com/trezcool/campus/tests"
)

func intPtr(i int) *int { return &i }

func TestTotalCredits(t *testing.T) {
	courses := []course.Course{
		{ID: "c1", Credits: 4},
		{ID: "c2", Credits: 0},
		{ID: "c3", Credits: 6},
	}
	tests := []struct {
		name        string
		enrollments []course.Enrollment
		want        int
	}{
		{name: "none", want: 0},
		{name: "with credits", enrollments: []course.Enrollment{{CourseID: "c1"}, {CourseID: "c3"}}, want: 10},
		{name: "no credits", enrollments: []course.Enrollment{{CourseID: "c2"}}, want: 3},
		{name: "deleted course", enrollments: []course.Enrollment{{CourseID: "gone"}, {CourseID: "c1"}}, want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dashboard.TotalCredits(tt.enrollments, courses, 3))
		})
	}
}

func TestService_Overview(t *testing.T) {
	conf := core.NewTestConfig()
	svcs := testutil.NewServices(conf, nil)
	dash := dashboard.NewService(svcs.Courses, svcs.Groups, svcs.TT, svcs.Activity, conf)
	ctx := context.Background()
	jane := testutil.CreateStudent(t, svcs.UsrRepo, "Jane", "jane_doe")
	john := testutil.CreateStudent(t, svcs.UsrRepo, "John", "john_doe")
	monday := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

	empty, err := dash.Overview(ctx, jane, monday)
	require.NoError(t, err)
	assert.Equal(t, dashboard.Stats{}, empty.Stats)
	assert.Empty(t, empty.TodayClasses)
	assert.Empty(t, empty.StudyGroups)

	goCourse, err := svcs.Courses.Create(ctx, john, course.NewCourse{
		Name:     "Go 101",
		Credits:  intPtr(4),
		Schedule: []course.Slot{{Day: "Monday", StartTime: "09:00"}, {Day: "Friday", StartTime: "09:00"}},
	})
	require.NoError(t, err)
	artCourse, err := svcs.Courses.Create(ctx, john, course.NewCourse{Name: "Art", Credits: intPtr(0)})
	require.NoError(t, err)
	_, err = svcs.Courses.Enroll(ctx, jane, goCourse.ID)
	require.NoError(t, err)
	_, err = svcs.Courses.Enroll(ctx, jane, artCourse.ID)
	require.NoError(t, err)

	mine, err := svcs.Groups.Create(ctx, jane, studygroup.NewGroup{Name: "Algo Club"})
	require.NoError(t, err)
	_, err = svcs.Groups.Create(ctx, john, studygroup.NewGroup{Name: "Bio Club"})
	require.NoError(t, err)

	ov, err := dash.Overview(ctx, jane, monday)
	require.NoError(t, err)
	assert.Equal(t, dashboard.Stats{
		EnrolledCourses: 2,
		StudyGroups:     1,
		UpcomingClasses: 1,
		TotalCredits:    4 + conf.Portal.DefaultCredits,
	}, ov.Stats)
	require.Len(t, ov.TodayClasses, 1)
	assert.Equal(t, "Go 101", ov.TodayClasses[0].Title)
	assert.Len(t, ov.RecentActivity, 3)

	require.Len(t, ov.StudyGroups, 2)
	for _, card := range ov.StudyGroups {
		assert.Equal(t, card.ID == mine.ID, card.Joined)
	}
}
