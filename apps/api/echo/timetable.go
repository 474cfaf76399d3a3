package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/timetable"
)

func (s *Server) registerTimetableAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	tg := g.Group("/timetable", authed...)
	tg.GET("", s.listTimetable)
	tg.GET("/today", s.todayTimetable)
	tg.POST("", s.addTimetableEntry)
	tg.DELETE("/:id", s.removeTimetableEntry)
}

func (s *Server) listTimetable(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	entries, err := s.deps.TimetableSvc.List(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing timetable")
	}
	if entries == nil {
		entries = []timetable.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (s *Server) todayTimetable(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	now, err := localNow(ctx)
	if err != nil {
		return err
	}
	entries, err := s.deps.TimetableSvc.Today(ctx.Request().Context(), usr, now)
	if err != nil {
		return errors.Wrap(err, "listing today timetable")
	}
	if entries == nil {
		entries = []timetable.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (s *Server) addTimetableEntry(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data timetable.NewEntry
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	entry, err := s.deps.TimetableSvc.Add(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "adding timetable entry")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (s *Server) removeTimetableEntry(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = s.deps.TimetableSvc.Remove(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing timetable entry")
	}
	return ctx.NoContent(http.StatusNoContent)
}
