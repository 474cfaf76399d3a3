package studygroup

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("study group not found")
	ErrGroupFull        = core.NewConflictError("study group is full")
	ErrAlreadyMember    = core.NewConflictError("already a member of this study group")
	ErrNotMember        = core.NewConflictError("not a member of this study group")
	ErrDeleteNotAllowed = core.NewPermissionError("only a group admin can delete this study group")
)

type (
	Repository interface {
		// CreateGroup stores the group along with its members.
		CreateGroup(ctx context.Context, g Group) (Group, error)
		// QueryGroups returns the matching groups, newest first, with their members.
		QueryGroups(ctx context.Context, filter RepoFilter) ([]Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		// DeleteGroup deletes the group & its members.
		DeleteGroup(ctx context.Context, id string) error
		// AddMember atomically adds m to the group unless it is full.
		// It fails with ErrNotFound, ErrAlreadyMember or ErrGroupFull.
		AddMember(ctx context.Context, groupID string, m Member) error
		// RemoveMember fails with ErrNotMember.
		RemoveMember(ctx context.Context, groupID, userID string) error
		UpdateMemberRole(ctx context.Context, groupID, userID, role string) error
		CountGroups(ctx context.Context, memberID string) (int, error)
	}

	// PresenceChecker tells which users are online.
	PresenceChecker interface {
		OnlineStatus(ctx context.Context, ids []string) (map[string]bool, error)
	}

	Service struct {
		repo     Repository
		presence PresenceChecker
		activity *activity.Service
		validate *validator.Validate
		logger   core.Logger
		conf     *core.Config
	}
)

func NewService(
	repo Repository,
	presence PresenceChecker,
	actSvc *activity.Service,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		presence: presence,
		activity: actSvc,
		validate: validate,
		logger:   logger,
		conf:     conf,
	}
}

// Create creates a group whose sole member & admin is usr.
func (svc *Service) Create(ctx context.Context, usr user.User, ng NewGroup) (Group, error) {
	if err := ng.Validate(ctx, svc.validate); err != nil {
		return Group{}, err
	}

	now := core.NowFunc()
	g := Group{
		Name:        ng.Name,
		Description: ng.Description,
		CourseIDs:   ng.CourseIDs,
		CreatedBy:   usr.ID,
		MaxMembers:  svc.conf.Portal.DefaultGroupSize,
		IsPrivate:   ng.IsPrivate,
		Tags:        ng.Tags,
		Meeting:     ng.Meeting,
		Members: []Member{{
			UserID:   usr.ID,
			Name:     usr.DisplayName(),
			Role:     RoleAdmin,
			Status:   StatusActive,
			JoinedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ng.MaxMembers != nil {
		g.MaxMembers = *ng.MaxMembers
	}
	if g.CourseIDs == nil {
		g.CourseIDs = []string{}
	}
	if g.Tags == nil {
		g.Tags = []string{}
	}

	g, err := svc.repo.CreateGroup(ctx, g)
	if err != nil {
		return Group{}, errors.Wrap(err, "creating group")
	}
	svc.activity.Record(ctx, usr.ID, activity.KindStudyGroup, "Created study group %s", g.Name)
	return g, nil
}

// Query lists the groups matching filter, as seen by usr.
func (svc *Service) Query(ctx context.Context, usr user.User, filter QueryFilter) ([]Group, error) {
	filter.Clean()

	var repoFilter RepoFilter
	if filter.Membership == MembershipJoined {
		repoFilter.MemberID = usr.ID
	}
	groups, err := svc.repo.QueryGroups(ctx, repoFilter)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}

	matching := make([]Group, 0, len(groups))
	for _, g := range groups {
		if !g.matches(filter.Search) {
			continue
		}
		if filter.Membership == MembershipAvailable && (g.IsMember(usr.ID) || g.IsFull()) {
			continue
		}
		matching = append(matching, g)
	}
	return matching, nil
}

// Get returns the group with its members' online status.
func (svc *Service) Get(ctx context.Context, id string) (Group, error) {
	if id == "" {
		return Group{}, ErrNotFound
	}
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}

	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	online, err := svc.presence.OnlineStatus(ctx, ids)
	if err != nil {
		return Group{}, errors.Wrap(err, "getting online status")
	}
	for i := range g.Members {
		g.Members[i].Online = online[g.Members[i].UserID]
	}
	return g, nil
}

// Join adds usr to the group as a member.
func (svc *Service) Join(ctx context.Context, usr user.User, id string) (Group, error) {
	g, err := svc.Get(ctx, id)
	if err != nil {
		return Group{}, err
	}

	err = svc.repo.AddMember(ctx, g.ID, Member{
		UserID:   usr.ID,
		Name:     usr.DisplayName(),
		Role:     RoleMember,
		Status:   StatusActive,
		JoinedAt: core.NowFunc(),
	})
	if err != nil {
		return Group{}, err
	}
	svc.activity.Record(ctx, usr.ID, activity.KindStudyGroup, "Joined study group %s", g.Name)
	return svc.Get(ctx, g.ID)
}

// Leave removes usr from the group. When the last admin leaves, the earliest member is promoted;
// when the last member leaves, the group is deleted. The returned bool reports the deletion.
func (svc *Service) Leave(ctx context.Context, usr user.User, id string) (Group, bool, error) {
	g, err := svc.Get(ctx, id)
	if err != nil {
		return Group{}, false, err
	}
	if err = svc.repo.RemoveMember(ctx, g.ID, usr.ID); err != nil {
		return Group{}, false, err
	}
	svc.activity.Record(ctx, usr.ID, activity.KindStudyGroup, "Left study group %s", g.Name)

	g, deleted, err := svc.settle(ctx, g.ID)
	if err != nil {
		return Group{}, false, err
	}
	if deleted {
		return Group{}, true, nil
	}
	return g, false, nil
}

// settle deletes the group when it has no members left, or promotes its earliest member when no admin remains.
func (svc *Service) settle(ctx context.Context, id string) (Group, bool, error) {
	g, err := svc.Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Group{}, true, nil
		}
		return Group{}, false, err
	}

	if len(g.Members) == 0 {
		if err = svc.repo.DeleteGroup(ctx, g.ID); err != nil && errors.Cause(err) != ErrNotFound {
			return Group{}, false, errors.Wrap(err, "deleting empty group")
		}
		return Group{}, true, nil
	}
	if g.AdminCount() == 0 {
		heir := g.Members[0] // members are ordered by JoinedAt
		if err = svc.repo.UpdateMemberRole(ctx, g.ID, heir.UserID, RoleAdmin); err != nil {
			return Group{}, false, errors.Wrap(err, "promoting member")
		}
		g, err = svc.Get(ctx, g.ID)
		return g, false, err
	}
	return g, false, nil
}

// ToggleMembership makes usr join the group, or leave it if they already are a member.
// It reports whether usr is a member afterwards.
func (svc *Service) ToggleMembership(ctx context.Context, usr user.User, id string) (Group, bool, error) {
	g, err := svc.Get(ctx, id)
	if err != nil {
		return Group{}, false, err
	}
	if g.IsMember(usr.ID) {
		g, _, err = svc.Leave(ctx, usr, id)
		return g, false, err
	}
	g, err = svc.Join(ctx, usr, id)
	return g, err == nil, err
}

// Delete deletes the group. Only its admins or a site admin may do it.
func (svc *Service) Delete(ctx context.Context, usr user.User, id string) error {
	g, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if !g.IsAdmin(usr.ID) && !usr.IsAdmin() {
		return ErrDeleteNotAllowed
	}
	if err = svc.repo.DeleteGroup(ctx, g.ID); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	svc.activity.Record(ctx, usr.ID, activity.KindStudyGroup, "Deleted study group %s", g.Name)
	return nil
}

// CountForUser returns the number of groups usr is a member of.
func (svc *Service) CountForUser(ctx context.Context, usr user.User) (int, error) {
	n, err := svc.repo.CountGroups(ctx, usr.ID)
	return n, errors.Wrap(err, "counting groups")
}

// RemoveUserEverywhere makes usr leave every group they are a member of.
func (svc *Service) RemoveUserEverywhere(ctx context.Context, usr user.User) error {
	groups, err := svc.repo.QueryGroups(ctx, RepoFilter{MemberID: usr.ID})
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	for _, g := range groups {
		if err = svc.repo.RemoveMember(ctx, g.ID, usr.ID); err != nil && errors.Cause(err) != ErrNotMember {
			return errors.Wrap(err, "removing member")
		}
		if _, _, err = svc.settle(ctx, g.ID); err != nil {
			return err
		}
	}
	return nil
}
