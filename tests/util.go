package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/database"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:        name,
		Username:    uname,
		Email:       email,
		Roles:       roles,
		IsActive:    isActive,
		Preferences: user.DefaultPreferences(),
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an active student whose password is "Pa55w0rd!".
func CreateStudent(t *testing.T, repo user.Repository, name, uname string) user.User {
	return CreateUser(t, repo, name, uname, uname+"@campus.test", "Pa55w0rd!", []string{user.RoleStudent}, true)
}

// OpenDB opens a private in-memory sqlite database with every migration applied.
func OpenDB(t *testing.T) *sqlx.DB {
	db, err := database.OpenSqlite(":memory:")
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err = database.Migrate(db, database.EngineSqlite); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ResetDB deletes every row, children first.
func ResetDB(t *testing.T, db *sqlx.DB) {
	for _, table := range []string{
		"activities", "timetable_entries", "study_group_members", "study_groups", "enrollments", "courses", "users",
	} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("ResetDB() failed: %v", err)
		}
	}
}
