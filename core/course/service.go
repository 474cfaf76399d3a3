package course

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/timetable"
	"github.com/trezcool/campus/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("course not found")
	ErrCourseFull       = core.NewConflictError("course is full")
	ErrAlreadyEnrolled  = core.NewConflictError("already enrolled in this course")
	ErrNotEnrolled      = core.NewConflictError("not enrolled in this course")
	ErrCourseEnded      = core.NewConflictError("course has ended")
	ErrDeleteNotAllowed = core.NewPermissionError("only the creator can delete this course")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		// QueryCourses returns the courses matching filter ordered by name.
		// QueryFilter.Tag is not applied by repositories.
		QueryCourses(ctx context.Context, filter QueryFilter) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// DeleteCourse deletes the course & its enrollments.
		DeleteCourse(ctx context.Context, id string) error
		// CreateEnrollment atomically records the enrollment & takes a seat.
		// It fails with ErrNotFound, ErrAlreadyEnrolled or ErrCourseFull.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		// DeleteEnrollment atomically removes the enrollment & frees its seat. It fails with ErrNotEnrolled.
		DeleteEnrollment(ctx context.Context, userID, courseID string) error
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
	}

	Service struct {
		repo      Repository
		timetable *timetable.Service
		activity  *activity.Service
		validate  *validator.Validate
		logger    core.Logger
		conf      *core.Config
	}
)

func NewService(
	repo Repository,
	ttSvc *timetable.Service,
	actSvc *activity.Service,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:      repo,
		timetable: ttSvc,
		activity:  actSvc,
		validate:  validate,
		logger:    logger,
		conf:      conf,
	}
}

// Create adds a course to the catalog on behalf of creator.
func (svc *Service) Create(ctx context.Context, creator user.User, nc NewCourse) (Course, error) {
	if err := nc.Validate(ctx, svc.validate); err != nil {
		return Course{}, err
	}

	now := core.NowFunc()
	c := Course{
		Code:          nc.Code,
		Name:          nc.Name,
		Description:   nc.Description,
		Instructor:    nc.Instructor,
		Credits:       svc.conf.Portal.DefaultCredits,
		Schedule:      nc.Schedule,
		Location:      nc.Location,
		Capacity:      svc.conf.Portal.DefaultCapacity,
		Prerequisites: nc.Prerequisites,
		Tags:          nc.Tags,
		Department:    nc.Department,
		Semester:      nc.Semester,
		Year:          nc.Year,
		ImageURL:      nc.ImageURL,
		FileURL:       nc.FileURL,
		EndDate:       nc.EndDate,
		CreatedBy:     creator.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if c.Instructor == "" {
		c.Instructor = creator.DisplayName()
	}
	if nc.Credits != nil {
		c.Credits = *nc.Credits
	}
	if nc.Capacity != nil {
		c.Capacity = *nc.Capacity
	}
	if c.Schedule == nil {
		c.Schedule = []Slot{}
	}
	if c.Prerequisites == nil {
		c.Prerequisites = []string{}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}

	c, err := svc.repo.CreateCourse(ctx, c)
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	svc.activity.Record(ctx, creator.ID, activity.KindCourse, "Created %s", c.Name)
	return c, nil
}

// Query returns the catalog: courses without an end date or ending in the future.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Course, error) {
	filter.Clean()
	filter.ActiveAt = core.NowFunc()

	courses, err := svc.repo.QueryCourses(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	if filter.Tag == "" {
		return courses, nil
	}
	tagged := make([]Course, 0, len(courses))
	for _, c := range courses {
		if c.HasTag(filter.Tag) {
			tagged = append(tagged, c)
		}
	}
	return tagged, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	if id == "" {
		return Course{}, ErrNotFound
	}
	return svc.repo.GetCourse(ctx, id)
}

// Delete removes a course with its enrollments & timetable entries. Only its creator or an admin may do it.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.CreatedBy != actor.ID && !actor.IsAdmin() {
		return ErrDeleteNotAllowed
	}

	if err = svc.timetable.RemoveCourseEntries(ctx, "", c.ID); err != nil {
		return errors.Wrap(err, "removing timetable entries")
	}
	if err = svc.repo.DeleteCourse(ctx, c.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	svc.activity.Record(ctx, actor.ID, activity.KindCourse, "Deleted %s", c.Name)
	return nil
}

// Enroll takes a seat in the course for usr and adds its schedule to their timetable.
func (svc *Service) Enroll(ctx context.Context, usr user.User, id string) (Course, error) {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if c.HasEnded(core.NowFunc()) {
		return Course{}, ErrCourseEnded
	}

	_, err = svc.repo.CreateEnrollment(ctx, Enrollment{UserID: usr.ID, CourseID: c.ID, CreatedAt: core.NowFunc()})
	if err != nil {
		return Course{}, err
	}

	if _, err = svc.timetable.AddCourseEntries(ctx, usr.ID, c.ID, TimetableEntries(c)); err != nil {
		// give the seat back
		if rbErr := svc.repo.DeleteEnrollment(ctx, usr.ID, c.ID); rbErr != nil {
			svc.logger.Error("rolling back enrollment", errors.Wrap(rbErr, "deleting enrollment"), usr)
		}
		return Course{}, errors.Wrap(err, "adding timetable entries")
	}
	svc.activity.Record(ctx, usr.ID, activity.KindEnrollment, "Enrolled in %s", c.Name)
	return svc.Get(ctx, c.ID)
}

// Unenroll frees the seat of usr and removes the course from their timetable.
func (svc *Service) Unenroll(ctx context.Context, usr user.User, id string) (Course, error) {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	enrolled, err := svc.IsEnrolled(ctx, usr, c.ID)
	if err != nil {
		return Course{}, err
	}
	if !enrolled {
		return Course{}, ErrNotEnrolled
	}

	// the seat is only freed once the timetable no longer shows the course
	if err = svc.timetable.RemoveCourseEntries(ctx, usr.ID, c.ID); err != nil {
		return Course{}, errors.Wrap(err, "removing timetable entries")
	}
	if err = svc.repo.DeleteEnrollment(ctx, usr.ID, c.ID); err != nil {
		if errors.Cause(err) != ErrNotEnrolled {
			// put the entries back
			if _, rbErr := svc.timetable.AddCourseEntries(ctx, usr.ID, c.ID, TimetableEntries(c)); rbErr != nil {
				svc.logger.Error("rolling back unenrollment", errors.Wrap(rbErr, "adding timetable entries"), usr)
			}
		}
		return Course{}, err
	}
	svc.activity.Record(ctx, usr.ID, activity.KindEnrollment, "Unenrolled from %s", c.Name)
	return svc.Get(ctx, c.ID)
}

// ToggleEnrollment enrolls usr if they are not yet enrolled, unenrolls them otherwise.
// It reports whether usr is enrolled afterwards.
func (svc *Service) ToggleEnrollment(ctx context.Context, usr user.User, id string) (Course, bool, error) {
	enrolled, err := svc.IsEnrolled(ctx, usr, id)
	if err != nil {
		return Course{}, false, err
	}
	if enrolled {
		c, err := svc.Unenroll(ctx, usr, id)
		return c, false, err
	}
	c, err := svc.Enroll(ctx, usr, id)
	return c, err == nil, err
}

func (svc *Service) IsEnrolled(ctx context.Context, usr user.User, id string) (bool, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{UserID: usr.ID, CourseID: id})
	if err != nil {
		return false, errors.Wrap(err, "querying enrollments")
	}
	return len(enrollments) > 0, nil
}

// ListEnrollments returns the enrollments of usr, newest first.
func (svc *Service) ListEnrollments(ctx context.Context, usr user.User) ([]Enrollment, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{UserID: usr.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	sort.SliceStable(enrollments, func(i, j int) bool {
		return enrollments[i].CreatedAt.After(enrollments[j].CreatedAt)
	})
	return enrollments, nil
}

// EnrolledCourses returns the courses (ended ones included) usr is enrolled in.
func (svc *Service) EnrolledCourses(ctx context.Context, usr user.User) ([]Course, error) {
	enrollments, err := svc.ListEnrollments(ctx, usr)
	if err != nil {
		return nil, err
	}
	if len(enrollments) == 0 {
		return []Course{}, nil
	}
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	courses, err := svc.repo.QueryCourses(ctx, QueryFilter{IDs: ids})
	return courses, errors.Wrap(err, "querying courses")
}

// EnrolledSet returns the IDs of the courses usr is enrolled in.
func (svc *Service) EnrolledSet(ctx context.Context, usr user.User) (map[string]bool, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{UserID: usr.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	set := make(map[string]bool, len(enrollments))
	for _, e := range enrollments {
		set[e.CourseID] = true
	}
	return set, nil
}

// UnenrollAll frees every seat taken by usr. Timetable entries are left to the caller.
func (svc *Service) UnenrollAll(ctx context.Context, usr user.User) error {
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{UserID: usr.ID})
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	for _, e := range enrollments {
		if err = svc.repo.DeleteEnrollment(ctx, usr.ID, e.CourseID); err != nil && errors.Cause(err) != ErrNotEnrolled {
			return errors.Wrap(err, "deleting enrollment")
		}
	}
	return nil
}

// TimetableEntries builds the timetable entries of c: one per schedule slot, or a single "TBD" lecture.
func TimetableEntries(c Course) []timetable.Entry {
	if len(c.Schedule) == 0 {
		return []timetable.Entry{{
			Title:      c.Name,
			Day:        timetable.TBD,
			StartTime:  timetable.TBD,
			EndTime:    timetable.TBD,
			Location:   c.Location,
			Instructor: c.Instructor,
			Type:       timetable.TypeLecture,
		}}
	}
	entries := make([]timetable.Entry, 0, len(c.Schedule))
	for _, slot := range c.Schedule {
		loc := slot.Location
		if loc == "" {
			loc = c.Location
		}
		typ := slot.Type
		if typ == "" {
			typ = timetable.TypeLecture
		}
		entries = append(entries, timetable.Entry{
			Title:      c.Name,
			Day:        slot.Day,
			StartTime:  slot.StartTime,
			EndTime:    slot.EndTime,
			Location:   loc,
			Instructor: c.Instructor,
			Type:       typ,
		})
	}
	return entries
}
