package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/timetable"
)

const entryColumns = "id, user_id, course_id, title, day, start_time, end_time, location, instructor, type, created_at"

type entryRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	CourseID   string    `db:"course_id"`
	Title      string    `db:"title"`
	Day        string    `db:"day"`
	StartTime  string    `db:"start_time"`
	EndTime    string    `db:"end_time"`
	Location   string    `db:"location"`
	Instructor string    `db:"instructor"`
	Type       string    `db:"type"`
	CreatedAt  time.Time `db:"created_at"`
}

type timetableRepository struct {
	db *sqlx.DB
}

var _ timetable.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(db *sqlx.DB) *timetableRepository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) filterWhere(filter timetable.Filter) *where {
	w := &where{}
	if filter.ID != "" {
		w.add("id = ?", filter.ID)
	}
	if filter.UserID != "" {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.CourseID != "" {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.Day != "" {
		w.add("day = ?", filter.Day)
	}
	return w
}

func (repo *timetableRepository) CreateEntries(ctx context.Context, entries ...timetable.Entry) ([]timetable.Entry, error) {
	created := make([]timetable.Entry, 0, len(entries))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := tx.Rebind("INSERT INTO timetable_entries (" + entryColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		for _, e := range entries {
			e.ID = uuid.New().String()
			e.CreatedAt = e.CreatedAt.UTC()
			_, err := tx.ExecContext(ctx, q,
				e.ID, e.UserID, e.CourseID, e.Title, e.Day, e.StartTime, e.EndTime, e.Location, e.Instructor, e.Type, e.CreatedAt)
			if err != nil {
				return errors.Wrap(err, "inserting timetable entry")
			}
			created = append(created, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *timetableRepository) QueryEntries(ctx context.Context, filter timetable.Filter) ([]timetable.Entry, error) {
	w := repo.filterWhere(filter)
	var rows []entryRow
	q := repo.db.Rebind("SELECT " + entryColumns + " FROM timetable_entries" + w.String() + " ORDER BY id ASC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying timetable entries")
	}

	entries := make([]timetable.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, timetable.Entry{
			ID:         row.ID,
			UserID:     row.UserID,
			CourseID:   row.CourseID,
			Title:      row.Title,
			Day:        row.Day,
			StartTime:  row.StartTime,
			EndTime:    row.EndTime,
			Location:   row.Location,
			Instructor: row.Instructor,
			Type:       row.Type,
			CreatedAt:  row.CreatedAt.UTC(),
		})
	}
	return entries, nil
}

func (repo *timetableRepository) DeleteEntries(ctx context.Context, filter timetable.Filter) (int, error) {
	if filter.IsEmpty() {
		return 0, nil
	}
	w := repo.filterWhere(filter)
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM timetable_entries"+w.String()), w.args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting timetable entries")
	}
	return rowsAffected(res)
}
