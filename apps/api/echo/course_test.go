package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/timetable"
)

func intPtr(i int) *int { return &i }

func (env *testEnv) createCourse(t *testing.T, token string, nc course.NewCourse) CourseResponse {
	rec := env.do(http.MethodPost, "/v1/courses", token, nc)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c CourseResponse
	decode(t, rec, &c)
	return c
}

func Test_courseApi_create(t *testing.T) {
	env := setup(t)
	usr := env.student(t, "Jane Doe", "jane_doe")
	token := env.token(t, usr)

	tests := []httpTest{
		{
			name: "token required", method: http.MethodPost, path: "/v1/courses",
			body: marchallObj(t, course.NewCourse{Name: "Go 101"}), wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "name required", method: http.MethodPost, path: "/v1/courses", token: token,
			body: marchallObj(t, course.NewCourse{Code: "CS101"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name: "invalid capacity", method: http.MethodPost, path: "/v1/courses", token: token,
			body: []byte(`{"name": "Go 101", "capacity": 0}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid slot day", method: http.MethodPost, path: "/v1/courses", token: token,
			body: []byte(`{"name": "Go 101", "schedule": [{"day": "Someday", "start_time": "09:00"}]}`),
			wantCode: http.StatusBadRequest,
		},
	}
	runHTTPTests(t, env, tests)

	t.Run("defaults", func(t *testing.T) {
		c := env.createCourse(t, token, course.NewCourse{Name: "  Go 101 ", Tags: []string{" go ", ""}})
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, "Go 101", c.Name)
		assert.Equal(t, "Jane Doe", c.Instructor)
		assert.Equal(t, env.conf.Portal.DefaultCapacity, c.Capacity)
		assert.Equal(t, env.conf.Portal.DefaultCredits, c.Credits)
		assert.Equal(t, 0, c.Enrolled)
		assert.Equal(t, usr.ID, c.CreatedBy)
		assert.Equal(t, []string{"go"}, c.Tags)
		assert.Equal(t, []course.Slot{}, c.Schedule)
		assert.False(t, c.IsEnrolled)
	})

	t.Run("schedule", func(t *testing.T) {
		c := env.createCourse(t, token, course.NewCourse{
			Name:     "Databases",
			Credits:  intPtr(0),
			Capacity: intPtr(2),
			Schedule: []course.Slot{{Day: " monday", StartTime: "09:00", EndTime: "10:30"}},
		})
		assert.Equal(t, 0, c.Credits)
		assert.Equal(t, 2, c.Capacity)
		assert.Equal(t, []course.Slot{{Day: "Monday", StartTime: "09:00", EndTime: "10:30", Type: course.SlotLecture}}, c.Schedule)
	})
}

func Test_courseApi_query(t *testing.T) {
	env := setup(t)
	usr := env.student(t, "Jane", "jane_doe")
	token := env.token(t, usr)

	past := time.Now().Add(-24 * time.Hour)
	algo := env.createCourse(t, token, course.NewCourse{Name: "Algorithms", Instructor: "Dr. Knuth", Department: "CS", Tags: []string{"Theory"}})
	bio := env.createCourse(t, token, course.NewCourse{Name: "Biology", Department: "Life Sciences"})
	_ = env.createCourse(t, token, course.NewCourse{Name: "Archived", EndDate: &past})

	rec := env.do(http.MethodPost, "/v1/courses/"+bio.ID+"/enroll", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bio.Enrolled, bio.IsEnrolled = 1, true

	tests := []httpTest{
		{
			name: "ended courses hidden", path: "/v1/courses", token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, []CourseResponse{algo, bio}),
		},
		{
			name: "search instructor", path: "/v1/courses?search=knuth", token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, []CourseResponse{algo}),
		},
		{
			name: "department", path: "/v1/courses?department=life%20sciences", token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, []CourseResponse{bio}),
		},
		{
			name: "tag", path: "/v1/courses?tag=theory", token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, []CourseResponse{algo}),
		},
		{
			name: "no match", path: "/v1/courses?search=chemistry", token: token,
			wantCode: http.StatusOK, wantData: []byte(`[]`),
		},
		{
			name: "retrieve", path: "/v1/courses/" + bio.ID, token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, bio),
		},
		{
			name: "not found", path: "/v1/courses/nope", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "course not found"}),
		},
	}
	runHTTPTests(t, env, tests)
}

func Test_courseApi_enrollment(t *testing.T) {
	env := setup(t)
	jane := env.student(t, "Jane", "jane_doe")
	john := env.student(t, "John", "john_doe")
	mary := env.student(t, "Mary", "mary_jane")
	janeToken, johnToken, maryToken := env.token(t, jane), env.token(t, john), env.token(t, mary)

	c := env.createCourse(t, janeToken, course.NewCourse{
		Name:     "Go 101",
		Capacity: intPtr(2),
		Schedule: []course.Slot{
			{Day: "Wednesday", StartTime: "14:00", EndTime: "15:00", Type: "lab", Location: "Lab 1"},
			{Day: "Monday", StartTime: "09:00", EndTime: "10:00"},
		},
	})
	enrollPath := "/v1/courses/" + c.ID + "/enroll"

	t.Run("enroll", func(t *testing.T) {
		rec := env.do(http.MethodPost, enrollPath, janeToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got CourseResponse
		decode(t, rec, &got)
		assert.Equal(t, 1, got.Enrolled)
		assert.True(t, got.IsEnrolled)
	})

	t.Run("schedule added to timetable", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/timetable", janeToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var entries []timetable.Entry
		decode(t, rec, &entries)
		require.Len(t, entries, 2)
		assert.Equal(t, "Monday", entries[0].Day)
		assert.Equal(t, timetable.TypeLecture, entries[0].Type)
		assert.Equal(t, "Wednesday", entries[1].Day)
		assert.Equal(t, "Lab 1", entries[1].Location)
		for _, e := range entries {
			assert.Equal(t, c.ID, e.CourseID)
			assert.Equal(t, "Go 101", e.Title)
		}
	})

	tests := []httpTest{
		{
			name: "already enrolled", method: http.MethodPost, path: enrollPath, token: janeToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "already enrolled in this course"}),
		},
		{name: "second seat", method: http.MethodPost, path: enrollPath, token: johnToken, wantCode: http.StatusOK},
		{
			name: "course full", method: http.MethodPost, path: enrollPath, token: maryToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "course is full"}),
		},
		{
			name: "not enrolled", method: http.MethodDelete, path: enrollPath, token: maryToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "not enrolled in this course"}),
		},
		{
			name: "unknown course", method: http.MethodPost, path: "/v1/courses/nope/enroll", token: maryToken,
			wantCode: http.StatusNotFound,
		},
	}
	runHTTPTests(t, env, tests)

	t.Run("unenroll", func(t *testing.T) {
		rec := env.do(http.MethodDelete, enrollPath, janeToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got CourseResponse
		decode(t, rec, &got)
		assert.Equal(t, 1, got.Enrolled)
		assert.False(t, got.IsEnrolled)

		rec = env.do(http.MethodGet, "/v1/timetable", janeToken)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("freed seat", func(t *testing.T) {
		rec := env.do(http.MethodPost, enrollPath, maryToken)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("toggle", func(t *testing.T) {
		path := "/v1/courses/" + c.ID + "/toggle-enrollment"
		rec := env.do(http.MethodPost, path, maryToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var got CourseResponse
		decode(t, rec, &got)
		assert.False(t, got.IsEnrolled)

		rec = env.do(http.MethodPost, path, maryToken)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &got)
		assert.True(t, got.IsEnrolled)
		assert.Equal(t, 2, got.Enrolled)
	})

	t.Run("enrollments", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/enrollments", maryToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var enrollments []course.Enrollment
		decode(t, rec, &enrollments)
		require.Len(t, enrollments, 1)
		assert.Equal(t, c.ID, enrollments[0].CourseID)
		assert.Equal(t, mary.ID, enrollments[0].UserID)

		rec = env.do(http.MethodGet, "/v1/enrollments", janeToken)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func Test_courseApi_enrollEnded(t *testing.T) {
	env := setup(t)
	usr := env.student(t, "Jane", "jane_doe")
	token := env.token(t, usr)

	past := time.Now().Add(-time.Hour)
	c := env.createCourse(t, token, course.NewCourse{Name: "Archived", EndDate: &past})

	rec := env.do(http.MethodPost, "/v1/courses/"+c.ID+"/enroll", token)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error": "course has ended"}`, rec.Body.String())
}

func Test_courseApi_destroy(t *testing.T) {
	env := setup(t)
	jane := env.student(t, "Jane", "jane_doe")
	john := env.student(t, "John", "john_doe")
	janeToken, johnToken := env.token(t, jane), env.token(t, john)
	adminToken := env.token(t, env.admin(t))

	c := env.createCourse(t, janeToken, course.NewCourse{Name: "Go 101"})
	other := env.createCourse(t, johnToken, course.NewCourse{Name: "Rust 101"})
	rec := env.do(http.MethodPost, "/v1/courses/"+c.ID+"/enroll", johnToken)
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []httpTest{
		{
			name: "not the creator", method: http.MethodDelete, path: "/v1/courses/" + c.ID, token: johnToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only the creator can delete this course"}),
		},
		{name: "creator", method: http.MethodDelete, path: "/v1/courses/" + c.ID, token: janeToken, wantCode: http.StatusNoContent},
		{
			name: "already deleted", method: http.MethodDelete, path: "/v1/courses/" + c.ID, token: janeToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "course not found"}),
		},
		{name: "admin", method: http.MethodDelete, path: "/v1/courses/" + other.ID, token: adminToken, wantCode: http.StatusNoContent},
	}
	runHTTPTests(t, env, tests)

	t.Run("enrollments & timetable cleared", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/enrollments", johnToken)
		assert.JSONEq(t, `[]`, rec.Body.String())
		rec = env.do(http.MethodGet, "/v1/timetable", johnToken)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}
