// Package account implements the data management actions of the settings page.
package account

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/studygroup"
	"github.com/trezcool/campus/core/timetable"
	"github.com/trezcool/campus/core/user"
)

type Service struct {
	users     *user.Service
	courses   *course.Service
	groups    *studygroup.Service
	timetable *timetable.Service
	activity  *activity.Service
}

func NewService(
	usrSvc *user.Service,
	courseSvc *course.Service,
	groupSvc *studygroup.Service,
	ttSvc *timetable.Service,
	actSvc *activity.Service,
) *Service {
	return &Service{
		users:     usrSvc,
		courses:   courseSvc,
		groups:    groupSvc,
		timetable: ttSvc,
		activity:  actSvc,
	}
}

// ClearData unenrolls usr from every course and empties their timetable & activity feed. The account is kept.
func (svc *Service) ClearData(ctx context.Context, usr user.User) error {
	if err := svc.courses.UnenrollAll(ctx, usr); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	if err := svc.timetable.Clear(ctx, usr.ID); err != nil {
		return errors.Wrap(err, "clearing timetable")
	}
	if err := svc.activity.Clear(ctx, usr.ID); err != nil {
		return errors.Wrap(err, "clearing activity")
	}
	svc.activity.Record(ctx, usr.ID, activity.KindAccount, "Cleared account data")
	return nil
}

// DeleteAccount clears the data of usr, removes them from their study groups, then deletes them.
func (svc *Service) DeleteAccount(ctx context.Context, usr user.User) error {
	if err := svc.ClearData(ctx, usr); err != nil {
		return err
	}
	if err := svc.activity.Clear(ctx, usr.ID); err != nil {
		return errors.Wrap(err, "clearing activity")
	}
	if err := svc.groups.RemoveUserEverywhere(ctx, usr); err != nil {
		return errors.Wrap(err, "leaving study groups")
	}
	if _, err := svc.users.Delete(ctx, usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return nil
}
