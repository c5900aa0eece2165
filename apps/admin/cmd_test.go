package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/user"
	inmemdb "github.com/trezcool/spis/storage/database/inmem"
	"github.com/trezcool/spis/testutil"
)

type fixture struct {
	cli          *commandLine
	usrRepo      user.Repository
	academicRepo academic.Repository
}

func setup(t *testing.T) fixture {
	t.Helper()

	mem := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(mem)
	academicRepo := inmemdb.NewAcademicRepository(mem)
	usrSvc := user.NewService(usrRepo)

	return fixture{
		cli: &commandLine{
			usrSvc:      usrSvc,
			academicSvc: academic.NewService(academicRepo, usrSvc),
		},
		usrRepo:      usrRepo,
		academicRepo: academicRepo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if pwd == "" {
			return nil, nil
		}
		return []byte(pwd), nil
	}
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	var ran []string
	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command)
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "meetings_venue", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(args))
		})
	}
	assert.Equal(t, []string{"up", "up-to", "down-to", "redo", "status", "create"}, ran)
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "taken", "taken@test.edu", false)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"adduser", "-username", "admin"}, wantErr: errHelp},
		{
			name: "username taken", args: []string{"adduser", "-username", "TAKEN"}, extra: extra{pwd: testutil.Password},
			wantErr: core.NewConflictError("username", user.ErrUsernameExists.Error()),
		},
		{
			name: "email taken", args: []string{"adduser", "-username", "other", "-email", "taken@test.edu"}, extra: extra{pwd: testutil.Password},
			wantErr: core.NewConflictError("email", user.ErrEmailExists.Error()),
		},
		{name: "superuser", args: []string{"adduser", "-username", " Admin ", "-email", "Admin@Test.edu", "-superuser"}, extra: extra{pwd: testutil.Password}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		pwd := ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}

		t.Run(tt.name, func(t *testing.T) {
			mockPassword(pwd)
			tt.check(t, f.cli.run(args))
		})
	}

	usr, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{Username: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "admin@test.edu", usr.Email)
	assert.Equal(t, "admin", usr.Name)
	assert.True(t, usr.IsSuperuser)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(testutil.Password))
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.usrRepo, "awe", "awe@test.edu", false)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.edu"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		pwd := ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}

		t.Run(tt.name, func(t *testing.T) {
			before, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)

			mockPassword(pwd)
			err = f.cli.run(args)
			tt.check(t, err)
			if err != nil {
				return
			}

			after, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.False(t, bytes.Equal(before.PasswordHash, after.PasswordHash), "failed to update new password")
			assert.NoError(t, after.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_addHOD(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.usrRepo, "head", "head@test.edu", false)

	tests := []cliTest{
		{name: "no args", args: []string{"addhod"}, wantErr: errHelp},
		{name: "department missing", args: []string{"addhod", "-username", "head"}, wantErr: errHelp},
		{name: "user not found", args: []string{"addhod", "-username", "lol", "-department", "CSE"}, wantErr: user.ErrNotFound},
		{name: "promoted", args: []string{"addhod", "-username", "head@test.edu", "-department", " CSE "}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(args))
		})
	}

	hp, err := f.academicRepo.GetHODByUserID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "CSE", hp.Department)

	refreshed, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.True(t, refreshed.InGroup(user.GroupHOD))
}
