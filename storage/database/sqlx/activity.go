package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/activity"
)

type activityRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Kind      string    `db:"kind"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

type activityRepository struct {
	db *sqlx.DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *sqlx.DB) *activityRepository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateActivity(ctx context.Context, act activity.Activity) (activity.Activity, error) {
	act.ID = uuid.New().String()
	act.CreatedAt = act.CreatedAt.UTC()

	q := repo.db.Rebind("INSERT INTO activities (id, user_id, kind, message, created_at) VALUES (?, ?, ?, ?, ?)")
	if _, err := repo.db.ExecContext(ctx, q, act.ID, act.UserID, act.Kind, act.Message, act.CreatedAt); err != nil {
		return activity.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return act, nil
}

func (repo *activityRepository) QueryActivities(ctx context.Context, userID string, limit int) ([]activity.Activity, error) {
	q := "SELECT id, user_id, kind, message, created_at FROM activities WHERE user_id = ? ORDER BY created_at DESC, id DESC"
	args := []interface{}{userID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []activityRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	acts := make([]activity.Activity, 0, len(rows))
	for _, row := range rows {
		acts = append(acts, activity.Activity{
			ID:        row.ID,
			UserID:    row.UserID,
			Kind:      row.Kind,
			Message:   row.Message,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return acts, nil
}

func (repo *activityRepository) DeleteActivities(ctx context.Context, userID string) (int, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM activities WHERE user_id = ?"), userID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting activities")
	}
	return rowsAffected(res)
}
