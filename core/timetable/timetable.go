package timetable

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/user"
)

// Entry types
const (
	TypeLecture  = "lecture"
	TypeLab      = "lab"
	TypeTutorial = "tutorial"
	TypeSeminar  = "seminar"
	TypeOther    = "other"
)

// TBD is the start time of course entries without a schedule.
const TBD = "TBD"

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("timetable entry not found")
	ErrTitleAndTimeReq = errors.New("Course name and time are required")
)

type Entry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	CourseID   string    `json:"course_id"` // empty for custom entries
	Title      string    `json:"title"`
	Day        string    `json:"day"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Location   string    `json:"location"`
	Instructor string    `json:"instructor"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// NewEntry contains information needed to add a custom entry.
type NewEntry struct {
	Title      string `json:"title"`
	Day        string `json:"day" validate:"required,weekday"`
	StartTime  string `json:"start_time" validate:"hhmm"`
	EndTime    string `json:"end_time" validate:"omitempty,hhmm"`
	Location   string `json:"location"`
	Instructor string `json:"instructor"`
	Type       string `json:"type" validate:"omitempty,oneof=lecture lab tutorial seminar other"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.StartTime = core.CleanString(ne.StartTime)
	ne.EndTime = core.CleanString(ne.EndTime)
	ne.Location = core.CleanString(ne.Location)
	ne.Instructor = core.CleanString(ne.Instructor)
	ne.Type = core.CleanString(ne.Type, true /* lower */)

	if ne.Title == "" || ne.StartTime == "" {
		return core.NewValidationError(ErrTitleAndTimeReq)
	}
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if day, ok := core.ParseWeekday(ne.Day); ok {
		ne.Day = day.String()
	}
	if ne.Type == "" {
		ne.Type = TypeOther
	}
	return nil
}

// Filter selects entries; empty fields are ignored but at least one must be set for deletions.
type Filter struct {
	ID       string
	UserID   string
	CourseID string
	Day      string
}

func (f Filter) IsEmpty() bool {
	return f.ID == "" && f.UserID == "" && f.CourseID == "" && f.Day == ""
}

type (
	Repository interface {
		CreateEntries(ctx context.Context, entries ...Entry) ([]Entry, error)
		QueryEntries(ctx context.Context, filter Filter) ([]Entry, error)
		DeleteEntries(ctx context.Context, filter Filter) (int, error)
	}

	Service struct {
		repo     Repository
		activity *activity.Service
		validate *validator.Validate
	}
)

func NewService(repo Repository, actSvc *activity.Service, validate *validator.Validate) *Service {
	return &Service{repo: repo, activity: actSvc, validate: validate}
}

// Add adds a custom entry to the timetable of usr. Overlapping entries are allowed.
func (svc *Service) Add(ctx context.Context, usr user.User, ne NewEntry) (Entry, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return Entry{}, err
	}

	entries, err := svc.repo.CreateEntries(ctx, Entry{
		UserID:     usr.ID,
		Title:      ne.Title,
		Day:        ne.Day,
		StartTime:  ne.StartTime,
		EndTime:    ne.EndTime,
		Location:   ne.Location,
		Instructor: ne.Instructor,
		Type:       ne.Type,
		CreatedAt:  core.NowFunc(),
	})
	if err != nil {
		return Entry{}, errors.Wrap(err, "creating entry")
	}
	svc.activity.Record(ctx, usr.ID, activity.KindTimetable, "Added %s to timetable", ne.Title)
	return entries[0], nil
}

// List returns the timetable of usr in week order (Monday first), then by start time.
func (svc *Service) List(ctx context.Context, usr user.User) ([]Entry, error) {
	entries, err := svc.repo.QueryEntries(ctx, Filter{UserID: usr.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying entries")
	}
	SortEntries(entries)
	return entries, nil
}

// Today returns the entries of usr happening on now's weekday, by start time.
func (svc *Service) Today(ctx context.Context, usr user.User, now time.Time) ([]Entry, error) {
	entries, err := svc.repo.QueryEntries(ctx, Filter{UserID: usr.ID, Day: now.Weekday().String()})
	if err != nil {
		return nil, errors.Wrap(err, "querying entries")
	}
	SortEntries(entries)
	return entries, nil
}

// Remove deletes an entry owned by usr.
func (svc *Service) Remove(ctx context.Context, usr user.User, id string) error {
	n, err := svc.repo.DeleteEntries(ctx, Filter{ID: id, UserID: usr.ID})
	if err != nil {
		return errors.Wrap(err, "deleting entry")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddCourseEntries adds the (already built) entries of a course to the timetable of userID.
func (svc *Service) AddCourseEntries(ctx context.Context, userID, courseID string, entries []Entry) ([]Entry, error) {
	now := core.NowFunc()
	for i := range entries {
		entries[i].UserID = userID
		entries[i].CourseID = courseID
		entries[i].CreatedAt = now
	}
	created, err := svc.repo.CreateEntries(ctx, entries...)
	return created, errors.Wrap(err, "creating course entries")
}

// RemoveCourseEntries removes the entries of courseID from the timetable of userID,
// or from every timetable when userID is empty.
func (svc *Service) RemoveCourseEntries(ctx context.Context, userID, courseID string) error {
	if courseID == "" {
		return nil
	}
	_, err := svc.repo.DeleteEntries(ctx, Filter{UserID: userID, CourseID: courseID})
	return errors.Wrap(err, "deleting course entries")
}

// Clear empties the timetable of userID.
func (svc *Service) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	_, err := svc.repo.DeleteEntries(ctx, Filter{UserID: userID})
	return errors.Wrap(err, "deleting entries")
}

// SortEntries sorts entries by weekday (Monday first), then start time ("TBD" last), then title.
func SortEntries(entries []Entry) {
	dayIdx := func(day string) int {
		if d, ok := core.ParseWeekday(day); ok {
			return core.WeekdayIndex(d)
		}
		return len(core.Weekdays)
	}
	startKey := func(start string) string {
		if start == TBD || start == "" {
			return "99:99"
		}
		return start
	}
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := dayIdx(entries[i].Day), dayIdx(entries[j].Day)
		if di != dj {
			return di < dj
		}
		si, sj := startKey(entries[i].StartTime), startKey(entries[j].StartTime)
		if si != sj {
			return si < sj
		}
		return entries[i].Title < entries[j].Title
	})
}
