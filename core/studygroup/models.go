package studygroup

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

// Member roles
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Member statuses
const (
	StatusActive = "active"
)

// Membership filters
const (
	MembershipAll       = "all"
	MembershipJoined    = "joined"
	MembershipAvailable = "available"
)

type Meeting struct {
	Schedule   string `json:"schedule"`
	Location   string `json:"location"`
	Virtual    bool   `json:"virtual"`
	MeetingURL string `json:"meeting_url" validate:"omitempty,url"`
	Recurring  bool   `json:"recurring"`
	Frequency  string `json:"frequency" validate:"omitempty,oneof=once daily weekly biweekly monthly"`
}

type Member struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"` // UTC
	Online   bool      `json:"online"`    // computed from user presence, not stored
}

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CourseIDs   []string  `json:"course_ids"`
	CreatedBy   string    `json:"created_by"`
	Members     []Member  `json:"members"` // by JoinedAt
	MaxMembers  int       `json:"max_members"`
	IsPrivate   bool      `json:"is_private"`
	Tags        []string  `json:"tags"`
	Meeting     Meeting   `json:"meeting"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (g *Group) IsFull() bool {
	return len(g.Members) >= g.MaxMembers
}

func (g *Group) Member(userID string) (Member, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

func (g *Group) IsMember(userID string) bool {
	_, ok := g.Member(userID)
	return ok
}

func (g *Group) IsAdmin(userID string) bool {
	m, ok := g.Member(userID)
	return ok && m.Role == RoleAdmin
}

func (g *Group) AdminCount() int {
	var n int
	for _, m := range g.Members {
		if m.Role == RoleAdmin {
			n++
		}
	}
	return n
}

// matches reports whether a case-insensitive `search` is in the name, the description or one of the tags.
func (g *Group) matches(search string) bool {
	if search == "" {
		return true
	}
	if core.ContainsFold(g.Name, search) || core.ContainsFold(g.Description, search) {
		return true
	}
	for _, tag := range g.Tags {
		if core.ContainsFold(tag, search) {
			return true
		}
	}
	return false
}

// SortMembers orders members by join time.
func SortMembers(members []Member) {
	sort.SliceStable(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
}

// Tags accepts either a list of tags or a comma-separated string.
type Tags []string

func (t *Tags) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = core.SplitTags(s)
		return nil
	}
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return errors.New("tags must be a list or a comma-separated string")
	}
	*t = core.CleanStrings(ss)
	return nil
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	CourseIDs   []string `json:"course_ids"`
	MaxMembers  *int     `json:"max_members" validate:"omitempty,min=2,max=500"`
	IsPrivate   bool     `json:"is_private"`
	Tags        Tags     `json:"tags"`
	Meeting     Meeting  `json:"meeting"`
}

func (ng *NewGroup) Validate(ctx context.Context, validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	ng.CourseIDs = core.CleanStrings(ng.CourseIDs)
	ng.Tags = core.CleanStrings(ng.Tags)
	ng.Meeting.Schedule = core.CleanString(ng.Meeting.Schedule)
	ng.Meeting.Location = core.CleanString(ng.Meeting.Location)
	ng.Meeting.MeetingURL = core.CleanString(ng.Meeting.MeetingURL)
	ng.Meeting.Frequency = core.CleanString(ng.Meeting.Frequency, true /* lower */)
	return validate.StructCtx(ctx, ng)
}

type QueryFilter struct {
	Search     string
	Membership string // all (default) | joined | available
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Membership = core.CleanString(qf.Membership, true /* lower */)
	if qf.Membership != MembershipJoined && qf.Membership != MembershipAvailable {
		qf.Membership = MembershipAll
	}
}

// RepoFilter selects groups at the storage level; empty fields are ignored.
type RepoFilter struct {
	IDs      []string
	MemberID string
}
