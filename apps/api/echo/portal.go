package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/chat"
	"github.com/trezcool/campus/core/media"
)

func (s *Server) registerPortalAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	g.GET("/dashboard", s.dashboard, authed...)
	g.GET("/activity", s.recentActivity, authed...)
	g.POST("/chat", s.chat, authed...)
	g.POST("/uploads/images", s.uploadImage, append(append([]echo.MiddlewareFunc{}, authed...), s.uploadBodyLimit())...)
}

// multipartOverhead is the room left for part headers and boundaries on top of the file itself.
const multipartOverhead = 64 * 1024

// uploadBodyLimit rejects upload bodies bigger than an image may be, before they are parsed.
func (s *Server) uploadBodyLimit() echo.MiddlewareFunc {
	limit := (s.deps.Conf.Storage.MaxImageSize + multipartOverhead) / 1024
	return middleware.BodyLimit(fmt.Sprintf("%dK", limit))
}

func (s *Server) dashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	now, err := localNow(ctx)
	if err != nil {
		return err
	}
	overview, err := s.deps.DashboardSvc.Overview(ctx.Request().Context(), usr, now)
	if err != nil {
		return errors.Wrap(err, "getting dashboard")
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (s *Server) recentActivity(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	acts, err := s.deps.ActivitySvc.Recent(ctx.Request().Context(), usr.ID, queryInt(ctx, "limit"))
	if err != nil {
		return errors.Wrap(err, "listing activity")
	}
	if acts == nil {
		acts = []activity.Activity{}
	}
	return ctx.JSON(http.StatusOK, acts)
}

func (s *Server) chat(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data chat.Request
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to chat.Request")
	}
	reply, err := s.deps.ChatSvc.Reply(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "replying")
	}
	return ctx.JSON(http.StatusOK, reply)
}

func (s *Server) uploadImage(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile || errors.Cause(err) == http.ErrNotMultipart {
			return media.ErrNoFile
		}
		return errors.Wrap(err, "reading form file")
	}
	// refuse before reading the part when the declared size is already too large
	if fh.Size > s.deps.Conf.Storage.MaxImageSize {
		return s.deps.MediaSvc.TooLargeError()
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening form file")
	}
	defer func() { _ = f.Close() }()

	upload, err := s.deps.MediaSvc.UploadImage(ctx.Request().Context(), usr, fh.Filename, fh.Size, f)
	if err != nil {
		return errors.Wrap(err, "uploading image")
	}
	return ctx.JSON(http.StatusCreated, upload)
}
