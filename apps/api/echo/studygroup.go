package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/studygroup"
	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerStudyGroupAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	sg := g.Group("/study-groups", authed...)
	sg.GET("", s.queryStudyGroups)
	sg.POST("", s.createStudyGroup)
	sg.GET("/:id", s.retrieveStudyGroup)
	sg.DELETE("/:id", s.destroyStudyGroup)
	sg.POST("/:id/join", s.joinStudyGroup)
	sg.POST("/:id/leave", s.leaveStudyGroup)
	sg.POST("/:id/toggle-membership", s.toggleMembership)
}

type (
	// StudyGroupResponse is a group as seen by the context user.
	StudyGroupResponse struct {
		studygroup.Group
		Joined bool `json:"joined"`
	}

	MembershipResponse struct {
		Group   *StudyGroupResponse `json:"group"` // nil when the group was deleted
		Joined  bool                `json:"joined"`
		Deleted bool                `json:"deleted"`
	}
)

func newStudyGroupResponse(g studygroup.Group, usr user.User) StudyGroupResponse {
	return StudyGroupResponse{Group: g, Joined: g.IsMember(usr.ID)}
}

func newMembershipResponse(g studygroup.Group, usr user.User, deleted bool) MembershipResponse {
	if deleted || g.ID == "" {
		return MembershipResponse{Deleted: true}
	}
	res := newStudyGroupResponse(g, usr)
	return MembershipResponse{Group: &res, Joined: res.Joined}
}

func (s *Server) queryStudyGroups(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := studygroup.QueryFilter{
		Search:     ctx.QueryParam("search"),
		Membership: ctx.QueryParam("membership"),
	}
	groups, err := s.deps.StudyGroupSvc.Query(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying study groups")
	}

	res := make([]StudyGroupResponse, 0, len(groups))
	for _, grp := range groups {
		res = append(res, newStudyGroupResponse(grp, usr))
	}
	return ctx.JSON(http.StatusOK, res)
}

func (s *Server) createStudyGroup(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data studygroup.NewGroup
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	grp, err := s.deps.StudyGroupSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating study group")
	}
	return ctx.JSON(http.StatusCreated, newStudyGroupResponse(grp, usr))
}

func (s *Server) retrieveStudyGroup(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	grp, err := s.deps.StudyGroupSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting study group")
	}
	return ctx.JSON(http.StatusOK, newStudyGroupResponse(grp, usr))
}

func (s *Server) destroyStudyGroup(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = s.deps.StudyGroupSvc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting study group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) joinStudyGroup(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	grp, err := s.deps.StudyGroupSvc.Join(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "joining study group")
	}
	return ctx.JSON(http.StatusOK, newMembershipResponse(grp, usr, false))
}

func (s *Server) leaveStudyGroup(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	grp, deleted, err := s.deps.StudyGroupSvc.Leave(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "leaving study group")
	}
	return ctx.JSON(http.StatusOK, newMembershipResponse(grp, usr, deleted))
}

func (s *Server) toggleMembership(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	grp, _, err := s.deps.StudyGroupSvc.ToggleMembership(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling membership")
	}
	return ctx.JSON(http.StatusOK, newMembershipResponse(grp, usr, false))
}
