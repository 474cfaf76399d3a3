package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/timetable"
	logsvc "github.com/trezcool/campus/services/logger"
	"github.com/trezcool/campus/storage/database"
	sqlxrepos "github.com/trezcool/campus/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	defer appLogger.Flush()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	actSvc := activity.NewService(sqlxrepos.NewActivityRepository(db), appLogger, conf)
	ttSvc := timetable.NewService(sqlxrepos.NewTimetableRepository(db), actSvc, validate)

	// start CLI
	cli := commandLine{
		db:        db,
		engine:    conf.Database.Engine,
		usrRepo:   sqlxrepos.NewUserRepository(db),
		courseSvc: course.NewService(sqlxrepos.NewCourseRepository(db), ttSvc, actSvc, validate, appLogger, conf),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
