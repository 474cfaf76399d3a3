package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/studygroup"
)

const groupColumns = "id, name, description, course_ids, created_by, max_members, is_private, tags, meeting, created_at, updated_at"

type groupRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	CourseIDs   types.JSONText `db:"course_ids"`
	CreatedBy   string         `db:"created_by"`
	MaxMembers  int            `db:"max_members"`
	IsPrivate   bool           `db:"is_private"`
	Tags        types.JSONText `db:"tags"`
	Meeting     types.JSONText `db:"meeting"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type memberRow struct {
	GroupID  string    `db:"group_id"`
	UserID   string    `db:"user_id"`
	Name     string    `db:"name"`
	Role     string    `db:"role"`
	Status   string    `db:"status"`
	JoinedAt time.Time `db:"joined_at"`
}

type studyGroupRepository struct {
	db *sqlx.DB
}

var _ studygroup.Repository = (*studyGroupRepository)(nil) // interface compliance check

func NewStudyGroupRepository(db *sqlx.DB) *studyGroupRepository {
	return &studyGroupRepository{db: db}
}

func (repo *studyGroupRepository) unmarshal(row groupRow) (studygroup.Group, error) {
	g := studygroup.Group{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		CreatedBy:   row.CreatedBy,
		MaxMembers:  row.MaxMembers,
		IsPrivate:   row.IsPrivate,
		Members:     make([]studygroup.Member, 0),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if err := fromJSON(row.CourseIDs, &g.CourseIDs); err != nil {
		return studygroup.Group{}, err
	}
	if err := fromJSON(row.Tags, &g.Tags); err != nil {
		return studygroup.Group{}, err
	}
	if err := fromJSON(row.Meeting, &g.Meeting); err != nil {
		return studygroup.Group{}, err
	}
	return g, nil
}

func insertMember(ctx context.Context, tx *sqlx.Tx, groupID string, m studygroup.Member) error {
	_, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO study_group_members (group_id, user_id, name, role, status, joined_at) VALUES (?, ?, ?, ?, ?, ?)"),
		groupID, m.UserID, m.Name, m.Role, m.Status, m.JoinedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return studygroup.ErrAlreadyMember
		}
		return errors.Wrap(err, "inserting member")
	}
	return nil
}

func (repo *studyGroupRepository) CreateGroup(ctx context.Context, g studygroup.Group) (studygroup.Group, error) {
	g.ID = uuid.New().String()
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()

	courseIDs, err := toJSON(g.CourseIDs)
	if err != nil {
		return studygroup.Group{}, err
	}
	tags, err := toJSON(g.Tags)
	if err != nil {
		return studygroup.Group{}, err
	}
	meeting, err := toJSON(g.Meeting)
	if err != nil {
		return studygroup.Group{}, err
	}

	err = withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := tx.Rebind("INSERT INTO study_groups (" + groupColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		_, err := tx.ExecContext(ctx, q,
			g.ID, g.Name, g.Description, courseIDs, g.CreatedBy, g.MaxMembers, g.IsPrivate, tags, meeting, g.CreatedAt, g.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "inserting study group")
		}
		for _, m := range g.Members {
			if err = insertMember(ctx, tx, g.ID, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return studygroup.Group{}, err
	}
	return repo.GetGroup(ctx, g.ID)
}

// loadMembers fills in the members of groups.
func (repo *studyGroupRepository) loadMembers(ctx context.Context, groups []studygroup.Group) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]string, 0, len(groups))
	byID := make(map[string]*studygroup.Group, len(groups))
	for i := range groups {
		ids = append(ids, groups[i].ID)
		byID[groups[i].ID] = &groups[i]
	}

	var w where
	if err := w.in("group_id", ids); err != nil {
		return err
	}
	var rows []memberRow
	q := repo.db.Rebind("SELECT group_id, user_id, name, role, status, joined_at FROM study_group_members" +
		w.String() + " ORDER BY joined_at ASC, user_id ASC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return errors.Wrap(err, "querying members")
	}
	for _, row := range rows {
		g := byID[row.GroupID]
		g.Members = append(g.Members, studygroup.Member{
			UserID:   row.UserID,
			Name:     row.Name,
			Role:     row.Role,
			Status:   row.Status,
			JoinedAt: row.JoinedAt.UTC(),
		})
	}
	return nil
}

func (repo *studyGroupRepository) QueryGroups(ctx context.Context, filter studygroup.RepoFilter) ([]studygroup.Group, error) {
	var w where
	if len(filter.IDs) > 0 {
		if err := w.in("id", filter.IDs); err != nil {
			return nil, err
		}
	}
	if filter.MemberID != "" {
		w.add("id IN (SELECT group_id FROM study_group_members WHERE user_id = ?)", filter.MemberID)
	}

	var rows []groupRow
	q := repo.db.Rebind("SELECT " + groupColumns + " FROM study_groups" + w.String() + " ORDER BY created_at DESC, id ASC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying study groups")
	}

	groups := make([]studygroup.Group, 0, len(rows))
	for _, row := range rows {
		g, err := repo.unmarshal(row)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := repo.loadMembers(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (repo *studyGroupRepository) GetGroup(ctx context.Context, id string) (studygroup.Group, error) {
	var row groupRow
	q := repo.db.Rebind("SELECT " + groupColumns + " FROM study_groups WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return studygroup.Group{}, studygroup.ErrNotFound
		}
		return studygroup.Group{}, errors.Wrap(err, "getting study group")
	}
	g, err := repo.unmarshal(row)
	if err != nil {
		return studygroup.Group{}, err
	}
	groups := []studygroup.Group{g}
	if err = repo.loadMembers(ctx, groups); err != nil {
		return studygroup.Group{}, err
	}
	return groups[0], nil
}

func (repo *studyGroupRepository) DeleteGroup(ctx context.Context, id string) error {
	// members go with the group (ON DELETE CASCADE)
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM study_groups WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting study group")
	}
	if n, err := rowsAffected(res); err != nil {
		return err
	} else if n == 0 {
		return studygroup.ErrNotFound
	}
	return nil
}

func (repo *studyGroupRepository) AddMember(ctx context.Context, groupID string, m studygroup.Member) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		// locks the group row until commit, so concurrent joins are counted one at a time
		res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE study_groups SET updated_at = ? WHERE id = ?"), m.JoinedAt.UTC(), groupID)
		if err != nil {
			return errors.Wrap(err, "locking study group")
		}
		if n, err := rowsAffected(res); err != nil {
			return err
		} else if n == 0 {
			return studygroup.ErrNotFound
		}

		n, err := count(ctx, tx, tx.Rebind("SELECT COUNT(*) FROM study_group_members WHERE group_id = ? AND user_id = ?"), groupID, m.UserID)
		if err != nil {
			return errors.Wrap(err, "checking membership")
		}
		if n > 0 {
			return studygroup.ErrAlreadyMember
		}

		var maxMembers int
		if err = tx.GetContext(ctx, &maxMembers, tx.Rebind("SELECT max_members FROM study_groups WHERE id = ?"), groupID); err != nil {
			return errors.Wrap(err, "getting group size")
		}
		if n, err = count(ctx, tx, tx.Rebind("SELECT COUNT(*) FROM study_group_members WHERE group_id = ?"), groupID); err != nil {
			return errors.Wrap(err, "counting members")
		}
		if n >= maxMembers {
			return studygroup.ErrGroupFull
		}
		return insertMember(ctx, tx, groupID, m)
	})
}

func (repo *studyGroupRepository) groupExists(ctx context.Context, groupID string) error {
	n, err := count(ctx, repo.db, repo.db.Rebind("SELECT COUNT(*) FROM study_groups WHERE id = ?"), groupID)
	if err != nil {
		return errors.Wrap(err, "checking study group")
	}
	if n == 0 {
		return studygroup.ErrNotFound
	}
	return nil
}

func (repo *studyGroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	if err := repo.groupExists(ctx, groupID); err != nil {
		return err
	}
	res, err := repo.db.ExecContext(ctx,
		repo.db.Rebind("DELETE FROM study_group_members WHERE group_id = ? AND user_id = ?"), groupID, userID)
	if err != nil {
		return errors.Wrap(err, "deleting member")
	}
	if n, err := rowsAffected(res); err != nil {
		return err
	} else if n == 0 {
		return studygroup.ErrNotMember
	}
	return nil
}

func (repo *studyGroupRepository) UpdateMemberRole(ctx context.Context, groupID, userID, role string) error {
	if err := repo.groupExists(ctx, groupID); err != nil {
		return err
	}
	res, err := repo.db.ExecContext(ctx,
		repo.db.Rebind("UPDATE study_group_members SET role = ? WHERE group_id = ? AND user_id = ?"), role, groupID, userID)
	if err != nil {
		return errors.Wrap(err, "updating member role")
	}
	if n, err := rowsAffected(res); err != nil {
		return err
	} else if n == 0 {
		return studygroup.ErrNotMember
	}
	return nil
}

func (repo *studyGroupRepository) CountGroups(ctx context.Context, memberID string) (int, error) {
	n, err := count(ctx, repo.db, repo.db.Rebind("SELECT COUNT(*) FROM study_group_members WHERE user_id = ?"), memberID)
	return n, errors.Wrap(err, "counting study groups")
}
