package course

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

// Slot types
const (
	SlotLecture  = "lecture"
	SlotLab      = "lab"
	SlotTutorial = "tutorial"
	SlotSeminar  = "seminar"
)

// Slot is a weekly recurring class of a course.
type Slot struct {
	Day       string `json:"day" validate:"required,weekday"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"omitempty,hhmm"`
	Location  string `json:"location"`
	Type      string `json:"type" validate:"omitempty,oneof=lecture lab tutorial seminar"`
}

type Course struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Instructor    string     `json:"instructor"`
	Credits       int        `json:"credits"`
	Schedule      []Slot     `json:"schedule"`
	Location      string     `json:"location"`
	Capacity      int        `json:"capacity"`
	Enrolled      int        `json:"enrolled"`
	Prerequisites []string   `json:"prerequisites"`
	Tags          []string   `json:"tags"`
	Department    string     `json:"department"`
	Semester      string     `json:"semester"`
	Year          int        `json:"year"`
	ImageURL      string     `json:"image_url"`
	FileURL       string     `json:"file_url"`
	EndDate       *time.Time `json:"end_date"` // UTC
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"` // UTC
	UpdatedAt     time.Time  `json:"updated_at"` // UTC
}

func (c *Course) IsFull() bool {
	return c.Enrolled >= c.Capacity
}

// HasEnded reports whether the course end date is in the past.
func (c *Course) HasEnded(now time.Time) bool {
	return c.EndDate != nil && c.EndDate.Before(now)
}

func (c *Course) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

type Enrollment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Code          string     `json:"code" validate:"max=50"`
	Name          string     `json:"name" validate:"required"`
	Description   string     `json:"description"`
	Instructor    string     `json:"instructor"`
	Credits       *int       `json:"credits" validate:"omitempty,min=0,max=30"`
	Schedule      []Slot     `json:"schedule" validate:"dive"`
	Location      string     `json:"location"`
	Capacity      *int       `json:"capacity" validate:"omitempty,min=1"`
	Prerequisites []string   `json:"prerequisites"`
	Tags          []string   `json:"tags"`
	Department    string     `json:"department"`
	Semester      string     `json:"semester"`
	Year          int        `json:"year" validate:"omitempty,min=1900,max=3000"`
	ImageURL      string     `json:"image_url" validate:"omitempty,url"`
	FileURL       string     `json:"file_url" validate:"omitempty,url"`
	EndDate       *time.Time `json:"end_date"`
}

func (nc *NewCourse) Validate(ctx context.Context, validate *validator.Validate) error {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Instructor = core.CleanString(nc.Instructor)
	nc.Location = core.CleanString(nc.Location)
	nc.Department = core.CleanString(nc.Department)
	nc.Semester = core.CleanString(nc.Semester)
	nc.ImageURL = core.CleanString(nc.ImageURL)
	nc.FileURL = core.CleanString(nc.FileURL)
	nc.Prerequisites = core.CleanStrings(nc.Prerequisites)
	nc.Tags = core.CleanStrings(nc.Tags)
	for i := range nc.Schedule {
		slot := &nc.Schedule[i]
		slot.StartTime = core.CleanString(slot.StartTime)
		slot.EndTime = core.CleanString(slot.EndTime)
		slot.Location = core.CleanString(slot.Location)
		slot.Type = core.CleanString(slot.Type, true /* lower */)
	}

	if err := validate.StructCtx(ctx, nc); err != nil {
		return err
	}

	for i := range nc.Schedule {
		slot := &nc.Schedule[i]
		if day, ok := core.ParseWeekday(slot.Day); ok {
			slot.Day = day.String()
		}
		if slot.Type == "" {
			slot.Type = SlotLecture
		}
	}
	if nc.EndDate != nil {
		end := nc.EndDate.UTC()
		nc.EndDate = &end
	}
	return nil
}

type QueryFilter struct {
	IDs []string
	// Search does a case-insensitive match on one of Course.Name or Course.Instructor.
	Search     string
	Department string
	Tag        string
	// ActiveAt excludes the courses that ended before it, when set.
	ActiveAt time.Time
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Department = core.CleanString(qf.Department)
	qf.Tag = core.CleanString(qf.Tag)
}

type EnrollmentFilter struct {
	UserID   string
	CourseID string
}
