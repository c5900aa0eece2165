package main

import (
	"context"

	"github.com/trezcool/spis/core/user"
)

// addUser creates an active user; superusers pass every access check.
func (cli *commandLine) addUser(name, uname, email, pwd string, isSuperuser bool) error {
	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	nu.Clean()
	if nu.Name == "" {
		nu.Name = nu.Username
	}
	_, err := cli.usrSvc.Create(context.Background(), nu, isSuperuser)
	return err
}
