package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/campus/core/timetable"
)

type timetableRepository struct {
	db *DB
}

var _ timetable.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(db *DB) *timetableRepository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) matches(e *timetable.Entry, filter timetable.Filter) bool {
	return (filter.ID == "" || e.ID == filter.ID) &&
		(filter.UserID == "" || e.UserID == filter.UserID) &&
		(filter.CourseID == "" || e.CourseID == filter.CourseID) &&
		(filter.Day == "" || e.Day == filter.Day)
}

func (repo *timetableRepository) CreateEntries(_ context.Context, entries ...timetable.Entry) ([]timetable.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]timetable.Entry, 0, len(entries))
	for _, e := range entries {
		e.ID = uuid.New().String()
		e.CreatedAt = e.CreatedAt.UTC()
		stored := e
		repo.db.entries[e.ID] = &stored
		created = append(created, e)
	}
	return created, nil
}

func (repo *timetableRepository) QueryEntries(_ context.Context, filter timetable.Filter) ([]timetable.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]timetable.Entry, 0)
	for _, e := range repo.db.entries {
		if repo.matches(e, filter) {
			entries = append(entries, *e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (repo *timetableRepository) DeleteEntries(_ context.Context, filter timetable.Filter) (int, error) {
	if filter.IsEmpty() {
		return 0, nil
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, e := range repo.db.entries {
		if repo.matches(e, filter) {
			delete(repo.db.entries, id)
			n++
		}
	}
	return n, nil
}
