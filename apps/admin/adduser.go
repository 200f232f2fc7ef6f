package main

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/user"
)

// checkPassword applies the password policy.
func checkPassword(pwd, name, email string) error {
	if tag := user.CheckPassword(pwd, name, email); tag != "" {
		return errors.New(user.PasswordPolicyText(tag))
	}
	return nil
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, pwd string, roles []string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	if err := checkPassword(pwd, name, email); err != nil {
		return err
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{Email: email, CreatedAt: now, UpdatedAt: now}
	}
	usr.Name = name
	if roles != nil {
		usr.Roles = roles
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr)
	return err
}
