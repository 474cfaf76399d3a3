package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) copy(c *course.Course) course.Course {
	cp := *c
	if c.Schedule != nil {
		cp.Schedule = append(make([]course.Slot, 0, len(c.Schedule)), c.Schedule...)
	}
	cp.Prerequisites = copyStrings(c.Prerequisites)
	cp.Tags = copyStrings(c.Tags)
	if c.EndDate != nil {
		end := *c.EndDate
		cp.EndDate = &end
	}
	return cp
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = uuid.New().String()
	c.Enrolled = 0
	stored := repo.copy(&c)
	repo.db.courses[c.ID] = &stored
	return c, nil
}

func (repo *courseRepository) matches(c *course.Course, filter course.QueryFilter) bool {
	if len(filter.IDs) > 0 {
		var found bool
		for _, id := range filter.IDs {
			if c.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Search != "" && !(core.ContainsFold(c.Name, filter.Search) || core.ContainsFold(c.Instructor, filter.Search)) {
		return false
	}
	if filter.Department != "" && !strings.EqualFold(c.Department, filter.Department) {
		return false
	}
	if !filter.ActiveAt.IsZero() && c.HasEnded(filter.ActiveAt) {
		return false
	}
	return true
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		if repo.matches(c, filter) {
			courses = append(courses, repo.copy(c))
		}
	}
	sort.SliceStable(courses, func(i, j int) bool {
		ni, nj := strings.ToLower(courses[i].Name), strings.ToLower(courses[j].Name)
		if ni != nj {
			return ni < nj
		}
		return courses[i].ID < courses[j].ID
	})
	return courses, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return repo.copy(c), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	for eid, e := range repo.db.enrollments {
		if e.CourseID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	return nil
}

// findEnrollment must be called with the lock held.
func (repo *courseRepository) findEnrollment(userID, courseID string) (string, bool) {
	for eid, e := range repo.db.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return eid, true
		}
	}
	return "", false
}

func (repo *courseRepository) CreateEnrollment(_ context.Context, e course.Enrollment) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c, ok := repo.db.courses[e.CourseID]
	if !ok {
		return course.Enrollment{}, course.ErrNotFound
	}
	if _, exists := repo.findEnrollment(e.UserID, e.CourseID); exists {
		return course.Enrollment{}, course.ErrAlreadyEnrolled
	}
	if c.IsFull() {
		return course.Enrollment{}, course.ErrCourseFull
	}

	e.ID = uuid.New().String()
	e.CreatedAt = e.CreatedAt.UTC()
	stored := e
	repo.db.enrollments[e.ID] = &stored
	c.Enrolled++
	return e, nil
}

func (repo *courseRepository) DeleteEnrollment(_ context.Context, userID, courseID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	eid, exists := repo.findEnrollment(userID, courseID)
	if !exists {
		return course.ErrNotEnrolled
	}
	delete(repo.db.enrollments, eid)
	if c, ok := repo.db.courses[courseID]; ok && c.Enrolled > 0 {
		c.Enrolled--
	}
	return nil
}

func (repo *courseRepository) QueryEnrollments(_ context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrollments := make([]course.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		enrollments = append(enrollments, *e)
	}
	sort.SliceStable(enrollments, func(i, j int) bool {
		return enrollments[i].CreatedAt.After(enrollments[j].CreatedAt)
	})
	return enrollments, nil
}
