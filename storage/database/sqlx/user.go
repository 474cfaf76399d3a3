package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

const userColumns = "id, name, username, email, photo_url, is_active, roles, preferences, password_hash, " +
	"created_at, updated_at, last_login, last_seen"

var userOrderingFields = map[string]bool{
	"name":       true,
	"username":   true,
	"email":      true,
	"created_at": true,
	"last_login": true,
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	PhotoURL     string         `db:"photo_url"`
	IsActive     bool           `db:"is_active"`
	Roles        types.JSONText `db:"roles"`
	Preferences  types.JSONText `db:"preferences"`
	PasswordHash string         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
	LastSeen     null.Time      `db:"last_seen"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// args returns the column values of usr, in userColumns order.
func (repo *userRepository) args(usr user.User) ([]interface{}, error) {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	rolesJSON, err := toJSON(roles)
	if err != nil {
		return nil, err
	}
	prefsJSON, err := toJSON(usr.Preferences)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		usr.ID,
		usr.Name,
		null.NewString(usr.Username, usr.Username != ""),
		null.NewString(usr.Email, usr.Email != ""),
		usr.PhotoURL,
		usr.IsActive,
		rolesJSON,
		prefsJSON,
		string(usr.PasswordHash),
		usr.CreatedAt.UTC(),
		usr.UpdatedAt.UTC(),
		null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
		null.NewTime(usr.LastSeen.UTC(), !usr.LastSeen.IsZero()),
	}, nil
}

func (repo *userRepository) unmarshal(row userRow) (user.User, error) {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		PhotoURL:     row.PhotoURL,
		IsActive:     row.IsActive,
		PasswordHash: []byte(row.PasswordHash),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	if row.LastSeen.Valid {
		usr.LastSeen = row.LastSeen.Time.UTC()
	}
	if err := fromJSON(row.Roles, &usr.Roles); err != nil {
		return user.User{}, err
	}
	if err := fromJSON(row.Preferences, &usr.Preferences); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	if username == "" && email == "" {
		return nil
	}

	var w where
	switch {
	case username != "" && email != "":
		w.add("(username = ? OR email = ?)", username, email)
	case username != "":
		w.add("username = ?", username)
	default:
		w.add("email = ?", email)
	}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		if err := w.in("id NOT", ids); err != nil {
			return err
		}
	}

	var rows []userRow
	q := repo.db.Rebind("SELECT " + userColumns + " FROM users" + w.String())
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	usr.CreatedAt = usr.CreatedAt.UTC()
	usr.UpdatedAt = usr.UpdatedAt.UTC()

	args, err := repo.args(usr)
	if err != nil {
		return user.User{}, err
	}
	q := repo.db.Rebind("INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if _, err = repo.db.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, core.NewConflictError("a user with this username or email already exists")
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := likePattern(filter.Search)
			w.add(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			conds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				conds = append(conds, `roles LIKE ? ESCAPE '\'`)
				w.args = append(w.args, `%"`+strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(role)+"%")
			}
			w.conds = append(w.conds, "("+strings.Join(conds, " OR ")+")")
		}
		if len(filter.IDs) > 0 {
			if err := w.in("id", filter.IDs); err != nil {
				return nil, err
			}
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if userOrderingFields[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, core.DBOrdering{Field: "created_at"}.String())
	}
	orderList = append(orderList, "id ASC")

	var rows []userRow
	q := repo.db.Rebind("SELECT " + userColumns + " FROM users" + w.String() + " ORDER BY " + strings.Join(orderList, ", "))
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		usr, err := repo.unmarshal(row)
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		w.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := repo.db.Rebind("SELECT " + userColumns + " FROM users" + w.String() + " LIMIT 1")
	if err := repo.db.GetContext(ctx, &row, q, w.args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return repo.unmarshal(row)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	args, err := repo.args(usr)
	if err != nil {
		return user.User{}, err
	}
	// everything but id & created_at, then the id to filter on
	updArgs := make([]interface{}, 0, len(args))
	updArgs = append(updArgs, args[1:9]...)
	updArgs = append(updArgs, args[10:]...)
	updArgs = append(updArgs, usr.ID)

	q := repo.db.Rebind(`UPDATE users SET name = ?, username = ?, email = ?, photo_url = ?, is_active = ?, roles = ?,
		preferences = ?, password_hash = ?, updated_at = ?, last_login = ?, last_seen = ? WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q, updArgs...)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, core.NewConflictError("a user with this username or email already exists")
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := rowsAffected(res); err != nil {
		return user.User{}, err
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) SetLastSeen(ctx context.Context, id string, lastSeen time.Time) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("UPDATE users SET last_seen = ? WHERE id = ?"), lastSeen.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last seen")
	}
	if n, err := rowsAffected(res); err != nil {
		return err
	} else if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var w where
	if err := w.in("id", ids); err != nil {
		return 0, err
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM users"+w.String()), w.args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return rowsAffected(res)
}
