// Package echoapi exposes the portal over HTTP with labstack/echo.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

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
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc       *user.Service
		AccountSvc    *account.Service
		CourseSvc     *course.Service
		StudyGroupSvc *studygroup.Service
		TimetableSvc  *timetable.Service
		ActivitySvc   *activity.Service
		DashboardSvc  *dashboard.Service
		MediaSvc      *media.Service
		ChatSvc       *chat.Service

		// MediaDir is served under /media when set (local storage backend).
		MediaDir string
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Logger.SetLevel(log.INFO)
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  conf.Server.AllowedOrigins,
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		ExposeHeaders: []string{headerRetryAfter},
	}))

	s.app.GET("/", s.home)
	if s.deps.MediaDir != "" {
		s.app.Static("/media", s.deps.MediaDir)
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	authed := []echo.MiddlewareFunc{jwt, contextUserMiddleware(s.deps.UserSvc)}

	s.registerUserAPI(v1, authed)
	s.registerCourseAPI(v1, authed)
	s.registerStudyGroupAPI(v1, authed)
	s.registerTimetableAPI(v1, authed)
	s.registerPortalAPI(v1, authed)
}

// Start listens on the configured host. Listener errors are sent to Errors.
func (s *Server) Start() {
	s.app.Logger.Infof("API listening on %s", s.deps.Conf.Server.Host)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the app to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }

func (s *Server) Close() error { return s.app.Close() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
