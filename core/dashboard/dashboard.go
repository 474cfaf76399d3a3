// Package dashboard aggregates the data shown on the student dashboard.
package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/studygroup"
	"github.com/trezcool/campus/core/timetable"
	"github.com/trezcool/campus/core/user"
)

type (
	Stats struct {
		EnrolledCourses int `json:"enrolled_courses"`
		StudyGroups     int `json:"study_groups"`
		UpcomingClasses int `json:"upcoming_classes"`
		TotalCredits    int `json:"total_credits"`
	}

	GroupCard struct {
		studygroup.Group
		Joined bool `json:"joined"`
	}

	Overview struct {
		Stats          Stats               `json:"stats"`
		TodayClasses   []timetable.Entry   `json:"today_classes"`
		RecentActivity []activity.Activity `json:"recent_activity"`
		StudyGroups    []GroupCard         `json:"study_groups"`
	}

	Service struct {
		courses   *course.Service
		groups    *studygroup.Service
		timetable *timetable.Service
		activity  *activity.Service
		conf      *core.Config
	}
)

func NewService(
	courseSvc *course.Service,
	groupSvc *studygroup.Service,
	ttSvc *timetable.Service,
	actSvc *activity.Service,
	conf *core.Config,
) *Service {
	return &Service{
		courses:   courseSvc,
		groups:    groupSvc,
		timetable: ttSvc,
		activity:  actSvc,
		conf:      conf,
	}
}

// Overview returns the dashboard of usr as of now.
func (svc *Service) Overview(ctx context.Context, usr user.User, now time.Time) (Overview, error) {
	enrollments, err := svc.courses.ListEnrollments(ctx, usr)
	if err != nil {
		return Overview{}, errors.Wrap(err, "listing enrollments")
	}
	courses, err := svc.courses.EnrolledCourses(ctx, usr)
	if err != nil {
		return Overview{}, errors.Wrap(err, "listing enrolled courses")
	}
	today, err := svc.timetable.Today(ctx, usr, now)
	if err != nil {
		return Overview{}, errors.Wrap(err, "listing today classes")
	}
	acts, err := svc.activity.Recent(ctx, usr.ID, svc.conf.Portal.ActivityLimit)
	if err != nil {
		return Overview{}, errors.Wrap(err, "listing recent activity")
	}
	groups, err := svc.groups.Query(ctx, usr, studygroup.QueryFilter{})
	if err != nil {
		return Overview{}, errors.Wrap(err, "listing study groups")
	}

	cards := make([]GroupCard, 0, len(groups))
	var joined int
	for _, g := range groups {
		card := GroupCard{Group: g, Joined: g.IsMember(usr.ID)}
		if card.Joined {
			joined++
		}
		cards = append(cards, card)
	}

	return Overview{
		Stats: Stats{
			EnrolledCourses: len(enrollments),
			StudyGroups:     joined,
			UpcomingClasses: len(today),
			TotalCredits:    TotalCredits(enrollments, courses, svc.conf.Portal.DefaultCredits),
		},
		TodayClasses:   today,
		RecentActivity: acts,
		StudyGroups:    cards,
	}, nil
}

// TotalCredits sums the credits of the enrolled courses.
// Courses without credits, or that do not exist anymore, count defaultCredits.
func TotalCredits(enrollments []course.Enrollment, courses []course.Course, defaultCredits int) int {
	credits := make(map[string]int, len(courses))
	for _, c := range courses {
		credits[c.ID] = c.Credits
	}

	var total int
	for _, e := range enrollments {
		if cr := credits[e.CourseID]; cr > 0 {
			total += cr
		} else {
			total += defaultCredits
		}
	}
	return total
}
