// Package inmemdb provides mutex-guarded in-memory repositories, for tests and the DB-less dev mode.
package inmemdb

import (
	"sync"

	"github.com/trezcool/campus/core/activity"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/studygroup"
	"github.com/trezcool/campus/core/timetable"
	"github.com/trezcool/campus/core/user"
)

// DB holds every table; a single lock keeps multi-table writes (eg. enrollment + seat count) atomic.
type DB struct {
	mutex sync.RWMutex

	users       map[string]*user.User
	courses     map[string]*course.Course
	enrollments map[string]*course.Enrollment
	groups      map[string]*studygroup.Group // members included
	entries     map[string]*timetable.Entry
	activities  map[string]*activity.Activity
}

func Open() *DB {
	db := &DB{}
	db.Reset()
	return db
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.users = make(map[string]*user.User)
	db.courses = make(map[string]*course.Course)
	db.enrollments = make(map[string]*course.Enrollment)
	db.groups = make(map[string]*studygroup.Group)
	db.entries = make(map[string]*timetable.Entry)
	db.activities = make(map[string]*activity.Activity)
}

// deleteUser cascades like the SQL foreign keys do. Callers hold the write lock.
func (db *DB) deleteUser(id string) {
	delete(db.users, id)
	for eid, e := range db.enrollments {
		if e.UserID == id {
			delete(db.enrollments, eid)
			if c, ok := db.courses[e.CourseID]; ok && c.Enrolled > 0 {
				c.Enrolled--
			}
		}
	}
	for gid, g := range db.groups {
		members := g.Members[:0]
		for _, m := range g.Members {
			if m.UserID != id {
				members = append(members, m)
			}
		}
		db.groups[gid].Members = members
	}
	for eid, e := range db.entries {
		if e.UserID == id {
			delete(db.entries, eid)
		}
	}
	for aid, a := range db.activities {
		if a.UserID == id {
			delete(db.activities, aid)
		}
	}
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append(make([]string, 0, len(ss)), ss...)
}
