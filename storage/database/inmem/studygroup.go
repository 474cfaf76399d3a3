package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/campus/core/studygroup"
)

type studyGroupRepository struct {
	db *DB
}

var _ studygroup.Repository = (*studyGroupRepository)(nil) // interface compliance check

func NewStudyGroupRepository(db *DB) *studyGroupRepository {
	return &studyGroupRepository{db: db}
}

func (repo *studyGroupRepository) copy(g *studygroup.Group) studygroup.Group {
	cp := *g
	cp.CourseIDs = copyStrings(g.CourseIDs)
	cp.Tags = copyStrings(g.Tags)
	cp.Members = append(make([]studygroup.Member, 0, len(g.Members)), g.Members...)
	studygroup.SortMembers(cp.Members)
	return cp
}

func (repo *studyGroupRepository) CreateGroup(_ context.Context, g studygroup.Group) (studygroup.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	g.ID = uuid.New().String()
	for i := range g.Members {
		g.Members[i].Online = false
		g.Members[i].JoinedAt = g.Members[i].JoinedAt.UTC()
	}
	stored := repo.copy(&g)
	repo.db.groups[g.ID] = &stored
	return repo.copy(&stored), nil
}

func (repo *studyGroupRepository) QueryGroups(_ context.Context, filter studygroup.RepoFilter) ([]studygroup.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var ids map[string]bool
	if len(filter.IDs) > 0 {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	groups := make([]studygroup.Group, 0, len(repo.db.groups))
	for _, g := range repo.db.groups {
		if ids != nil && !ids[g.ID] {
			continue
		}
		if filter.MemberID != "" && !g.IsMember(filter.MemberID) {
			continue
		}
		groups = append(groups, repo.copy(g))
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].CreatedAt.After(groups[j].CreatedAt)
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

func (repo *studyGroupRepository) GetGroup(_ context.Context, id string) (studygroup.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if g, ok := repo.db.groups[id]; ok {
		return repo.copy(g), nil
	}
	return studygroup.Group{}, studygroup.ErrNotFound
}

func (repo *studyGroupRepository) DeleteGroup(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.groups[id]; !ok {
		return studygroup.ErrNotFound
	}
	delete(repo.db.groups, id)
	return nil
}

func (repo *studyGroupRepository) AddMember(_ context.Context, groupID string, m studygroup.Member) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	g, ok := repo.db.groups[groupID]
	if !ok {
		return studygroup.ErrNotFound
	}
	if g.IsMember(m.UserID) {
		return studygroup.ErrAlreadyMember
	}
	if g.IsFull() {
		return studygroup.ErrGroupFull
	}
	m.Online = false
	m.JoinedAt = m.JoinedAt.UTC()
	g.Members = append(g.Members, m)
	return nil
}

func (repo *studyGroupRepository) RemoveMember(_ context.Context, groupID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	g, ok := repo.db.groups[groupID]
	if !ok {
		return studygroup.ErrNotFound
	}
	for i, m := range g.Members {
		if m.UserID == userID {
			g.Members = append(g.Members[:i:i], g.Members[i+1:]...)
			return nil
		}
	}
	return studygroup.ErrNotMember
}

func (repo *studyGroupRepository) UpdateMemberRole(_ context.Context, groupID, userID, role string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	g, ok := repo.db.groups[groupID]
	if !ok {
		return studygroup.ErrNotFound
	}
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			g.Members[i].Role = role
			return nil
		}
	}
	return studygroup.ErrNotMember
}

func (repo *studyGroupRepository) CountGroups(_ context.Context, memberID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, g := range repo.db.groups {
		if g.IsMember(memberID) {
			n++
		}
	}
	return n, nil
}
