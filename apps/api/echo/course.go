package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/course"
)

func (s *Server) registerCourseAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	cg := g.Group("/courses", authed...)
	cg.GET("", s.queryCourses)
	cg.POST("", s.createCourse)
	cg.GET("/:id", s.retrieveCourse)
	cg.DELETE("/:id", s.destroyCourse)
	cg.POST("/:id/enroll", s.enroll)
	cg.DELETE("/:id/enroll", s.unenroll)
	cg.POST("/:id/toggle-enrollment", s.toggleEnrollment)

	g.GET("/enrollments", s.queryEnrollments, authed...)
}

// CourseResponse is a course as seen by the context user.
type CourseResponse struct {
	course.Course
	IsEnrolled bool `json:"is_enrolled"`
}

func (s *Server) queryCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := course.QueryFilter{
		Search:     ctx.QueryParam("search"),
		Department: ctx.QueryParam("department"),
		Tag:        ctx.QueryParam("tag"),
	}
	courses, err := s.deps.CourseSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	enrolled, err := s.deps.CourseSvc.EnrolledSet(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting enrollments")
	}

	res := make([]CourseResponse, 0, len(courses))
	for _, c := range courses {
		res = append(res, CourseResponse{Course: c, IsEnrolled: enrolled[c.ID]})
	}
	return ctx.JSON(http.StatusOK, res)
}

func (s *Server) createCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	c, err := s.deps.CourseSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, CourseResponse{Course: c})
}

func (s *Server) retrieveCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	c, err := s.deps.CourseSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	enrolled, err := s.deps.CourseSvc.IsEnrolled(ctx.Request().Context(), usr, c.ID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	return ctx.JSON(http.StatusOK, CourseResponse{Course: c, IsEnrolled: enrolled})
}

func (s *Server) destroyCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = s.deps.CourseSvc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) enroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := s.deps.CourseSvc.Enroll(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusOK, CourseResponse{Course: c, IsEnrolled: true})
}

func (s *Server) unenroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := s.deps.CourseSvc.Unenroll(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.JSON(http.StatusOK, CourseResponse{Course: c})
}

func (s *Server) toggleEnrollment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, enrolled, err := s.deps.CourseSvc.ToggleEnrollment(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling enrollment")
	}
	return ctx.JSON(http.StatusOK, CourseResponse{Course: c, IsEnrolled: enrolled})
}

func (s *Server) queryEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enrollments, err := s.deps.CourseSvc.ListEnrollments(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	if enrollments == nil {
		enrollments = []course.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}
