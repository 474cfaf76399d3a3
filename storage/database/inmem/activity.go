package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/campus/core/activity"
)

type activityRepository struct {
	db *DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) *activityRepository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateActivity(_ context.Context, act activity.Activity) (activity.Activity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	act.ID = uuid.New().String()
	act.CreatedAt = act.CreatedAt.UTC()
	stored := act
	repo.db.activities[act.ID] = &stored
	return act, nil
}

func (repo *activityRepository) QueryActivities(_ context.Context, userID string, limit int) ([]activity.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	acts := make([]activity.Activity, 0)
	for _, a := range repo.db.activities {
		if a.UserID == userID {
			acts = append(acts, *a)
		}
	}
	sort.SliceStable(acts, func(i, j int) bool {
		if !acts[i].CreatedAt.Equal(acts[j].CreatedAt) {
			return acts[i].CreatedAt.After(acts[j].CreatedAt)
		}
		return acts[i].ID > acts[j].ID
	})
	if limit > 0 && len(acts) > limit {
		acts = acts[:limit]
	}
	return acts, nil
}

func (repo *activityRepository) DeleteActivities(_ context.Context, userID string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, a := range repo.db.activities {
		if a.UserID == userID {
			delete(repo.db.activities, id)
			n++
		}
	}
	return n, nil
}
