package testutil

import (
	"io"
	"log"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/studygroup"
	"github.com/trezcool/campus/core/timetable"
	"github.com/trezcool/campus/core/user"
	logsvc "github.com/trezcool/campus/services/logger"
	inmemdb "github.com/trezcool/campus/storage/database/inmem"
)

// NewValidate returns a validator with every app validation registered.
func NewValidate() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

// NewLogger returns a logger writing nowhere.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// Services are the core services wired on a fresh in-memory DB.
type Services struct {
	Conf     *core.Config
	DB       *inmemdb.DB
	UsrRepo  user.Repository
	Users    *user.Service
	Activity *activity.Service
	TT       *timetable.Service
	Courses  *course.Service
	Groups   *studygroup.Service
}

func NewServices(conf *core.Config, mailSvc core.EmailService) *Services {
	validate := NewValidate()
	logger := NewLogger(conf)
	db := inmemdb.Open()

	s := &Services{Conf: conf, DB: db, UsrRepo: inmemdb.NewUserRepository(db)}
	s.Users = user.NewService(s.UsrRepo, mailSvc, validate, conf)
	s.Activity = activity.NewService(inmemdb.NewActivityRepository(db), logger, conf)
	s.TT = timetable.NewService(inmemdb.NewTimetableRepository(db), s.Activity, validate)
	s.Courses = course.NewService(inmemdb.NewCourseRepository(db), s.TT, s.Activity, validate, logger, conf)
	s.Groups = studygroup.NewService(inmemdb.NewStudyGroupRepository(db), s.Users, s.Activity, validate, logger, conf)
	return s
}
