package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/account"
	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/chat"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/dashboard"
	"github.com/trezcool/campus/core/media"
	"github.com/trezcool/campus/core/studygroup"
	"github.com/trezcool/campus/core/timetable"
	"github.com/trezcool/campus/core/user"
	appfs "github.com/trezcool/campus/fs"
	aisvc "github.com/trezcool/campus/services/ai"
	emailsvc "github.com/trezcool/campus/services/email"
	logsvc "github.com/trezcool/campus/services/logger"
	"github.com/trezcool/campus/services/ratelimit"
	storagesvc "github.com/trezcool/campus/services/storage"
	"github.com/trezcool/campus/storage/database"
	inmemdb "github.com/trezcool/campus/storage/database/inmem"
	sqlxrepos "github.com/trezcool/campus/storage/database/sqlx"
)

type repositories struct {
	users      user.Repository
	courses    course.Repository
	groups     studygroup.Repository
	timetable  timetable.Repository
	activities activity.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Flush()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	repos, closeDB, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, !conf.Debug, logger)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords, logger)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	limiter, closeLimiter, err := setUpLimiter(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up rate limiter: %v", err), err)
	}
	defer func() { _ = closeLimiter() }()

	var store media.ObjectStore
	var mediaDir string
	switch conf.Storage.Backend {
	case "cloudinary":
		store = storagesvc.NewCloudinaryStore(conf)
	default:
		local := storagesvc.NewLocalStore(conf)
		store, mediaDir = local, local.Dir()
	}

	var completer chat.Completer
	switch conf.AI.Provider {
	case "openai":
		completer = aisvc.NewOpenAICompleter(conf)
	default:
		completer = aisvc.NewCannedCompleter()
	}

	usrSvc := user.NewService(repos.users, mailSvc, validate, conf)
	actSvc := activity.NewService(repos.activities, logger, conf)
	ttSvc := timetable.NewService(repos.timetable, actSvc, validate)
	courseSvc := course.NewService(repos.courses, ttSvc, actSvc, validate, logger, conf)
	groupSvc := studygroup.NewService(repos.groups, usrSvc, actSvc, validate, logger, conf)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,

		UserSvc:       usrSvc,
		AccountSvc:    account.NewService(usrSvc, courseSvc, groupSvc, ttSvc, actSvc),
		CourseSvc:     courseSvc,
		StudyGroupSvc: groupSvc,
		TimetableSvc:  ttSvc,
		ActivitySvc:   actSvc,
		DashboardSvc:  dashboard.NewService(courseSvc, groupSvc, ttSvc, actSvc, conf),
		MediaSvc:      media.NewService(store, logger, conf),
		ChatSvc:       chat.NewService(completer, limiter, validate, logger, conf),
		MediaDir:      mediaDir,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (repositories, func() error, error) {
	if conf.Database.Engine == database.EngineMemory {
		db := inmemdb.Open()
		return repositories{
			users:      inmemdb.NewUserRepository(db),
			courses:    inmemdb.NewCourseRepository(db),
			groups:     inmemdb.NewStudyGroupRepository(db),
			timetable:  inmemdb.NewTimetableRepository(db),
			activities: inmemdb.NewActivityRepository(db),
		}, func() error { return nil }, nil
	}

	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		return repositories{}, nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, nil, err
	}
	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		_ = db.Close()
		return repositories{}, nil, err
	}
	return sqlRepositories(db), db.Close, nil
}

func sqlRepositories(db *sqlx.DB) repositories {
	return repositories{
		users:      sqlxrepos.NewUserRepository(db),
		courses:    sqlxrepos.NewCourseRepository(db),
		groups:     sqlxrepos.NewStudyGroupRepository(db),
		timetable:  sqlxrepos.NewTimetableRepository(db),
		activities: sqlxrepos.NewActivityRepository(db),
	}
}

// setUpLimiter uses redis when an address is configured, an in-process limiter otherwise.
func setUpLimiter(conf *core.Config) (chat.Limiter, func() error, error) {
	if conf.Redis.Addr == "" {
		return ratelimit.NewMemoryLimiter(), func() error { return nil }, nil
	}
	rdb, err := ratelimit.NewRedisClient(context.Background(), conf)
	if err != nil {
		return nil, nil, err
	}
	return ratelimit.NewRedisLimiter(rdb), rdb.Close, nil
}
