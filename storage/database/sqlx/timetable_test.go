package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/timetable"
	"github.com/trezcool/campus/tests"
)

func Test_timetableRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewTimetableRepository(db)
	jane := testutil.CreateStudent(t, NewUserRepository(db), "Jane", "janedoe")

	now := time.Now().UTC()
	created, err := repo.CreateEntries(ctx,
		timetable.Entry{UserID: jane.ID, CourseID: "c1", Title: "Algorithms", Day: "Monday", StartTime: "09:00", Type: timetable.TypeLecture, CreatedAt: now},
		timetable.Entry{UserID: jane.ID, CourseID: "c1", Title: "Algorithms", Day: "Wednesday", StartTime: "09:00", Type: timetable.TypeLab, CreatedAt: now},
		timetable.Entry{UserID: jane.ID, Title: "Gym", Day: "Monday", StartTime: "18:00", Type: timetable.TypeOther, CreatedAt: now},
	)
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.NotEmpty(t, created[0].ID)

	entries, err := repo.QueryEntries(ctx, timetable.Filter{UserID: jane.ID, Day: "Monday"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	n, err := repo.DeleteEntries(ctx, timetable.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n, "an empty filter deletes nothing")

	n, err = repo.DeleteEntries(ctx, timetable.Filter{UserID: jane.ID, CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err = repo.QueryEntries(ctx, timetable.Filter{UserID: jane.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Gym", entries[0].Title)
}

func Test_activityRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewActivityRepository(db)
	jane := testutil.CreateStudent(t, NewUserRepository(db), "Jane", "janedoe")

	now := time.Now().UTC()
	for i, msg := range []string{"first", "second", "third"} {
		_, err := repo.CreateActivity(ctx, activity.Activity{
			UserID:    jane.ID,
			Kind:      activity.KindCourse,
			Message:   msg,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	acts, err := repo.QueryActivities(ctx, jane.ID, 2)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, "third", acts[0].Message)
	assert.Equal(t, "second", acts[1].Message)

	acts, err = repo.QueryActivities(ctx, jane.ID, 0)
	require.NoError(t, err)
	assert.Len(t, acts, 3)

	n, err := repo.DeleteActivities(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
