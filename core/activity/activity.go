// Package activity keeps the recent activity feed shown on the dashboard.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

// Kinds
const (
	KindEnrollment = "enrollment"
	KindStudyGroup = "study_group"
	KindTimetable  = "timetable"
	KindCourse     = "course"
	KindAccount    = "account"
)

type Activity struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type (
	Repository interface {
		CreateActivity(ctx context.Context, act Activity) (Activity, error)
		// QueryActivities returns the activities of userID, newest first; limit <= 0 means no limit.
		QueryActivities(ctx context.Context, userID string, limit int) ([]Activity, error)
		DeleteActivities(ctx context.Context, userID string) (int, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
		limit  int
	}
)

func NewService(repo Repository, logger core.Logger, conf *core.Config) *Service {
	return &Service{repo: repo, logger: logger, limit: conf.Portal.ActivityLimit}
}

// Record adds an entry to the feed of userID. The feed is informative only: failures are logged, not returned.
func (svc *Service) Record(ctx context.Context, userID, kind, format string, args ...interface{}) {
	act := Activity{
		UserID:    userID,
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		CreatedAt: core.NowFunc(),
	}
	if _, err := svc.repo.CreateActivity(ctx, act); err != nil {
		svc.logger.Error("recording activity", errors.Wrap(err, "creating activity"), map[string]interface{}{
			"user_id": userID,
			"kind":    kind,
		})
	}
}

// Recent returns the latest activities of userID, newest first.
func (svc *Service) Recent(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit <= 0 || limit > svc.limit {
		limit = svc.limit
	}
	acts, err := svc.repo.QueryActivities(ctx, userID, limit)
	return acts, errors.Wrap(err, "querying activities")
}

func (svc *Service) Clear(ctx context.Context, userID string) error {
	_, err := svc.repo.DeleteActivities(ctx, userID)
	return errors.Wrap(err, "deleting activities")
}
