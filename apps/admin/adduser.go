package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.findUser(ctx, uname, email)
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := core.NowFunc()
		usr = user.User{
			Username:    uname,
			Email:       email,
			Roles:       []string{user.RoleStudent},
			Preferences: user.DefaultPreferences(),
			CreatedAt:   now,
		}
	}

	if name != "" {
		usr.Name = name
	}
	if isAdmin {
		usr.Roles = user.AdminRoles
	}
	usr.IsActive = true
	usr.UpdatedAt = core.NowFunc()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}

func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	for _, key := range []string{uname, email} {
		if key == "" {
			continue
		}
		usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: key})
		if errors.Cause(err) == user.ErrNotFound {
			continue
		}
		return usr, err
	}
	return user.User{}, user.ErrNotFound
}
