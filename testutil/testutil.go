// Package testutil holds the fixtures shared by package tests. Everything runs against the in-memory database.
package testutil

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/access"
	"github.com/trezcool/spis/core/user"
	logsvc "github.com/trezcool/spis/services/logger"
)

// Password satisfies the password policy.
const Password = "Str0ng!Pass#2021"

func Config() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	return conf
}

// Logger discards everything and never reaches Rollbar.
func Logger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// Validator returns a validator with every rule of the app registered.
func Validator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	academic.InitValidators(validate, translator)
	return validate, translator
}

func Float(f float64) *float64 {
	return &f
}

func newUser(t *testing.T, uname, email string, groups ...string) user.User {
	usr, err := user.NewUser{Name: uname, Username: uname, Email: email, Password: Password}.Build(groups...)
	if err != nil {
		t.Fatalf("newUser() failed: %v", err)
	}
	return usr
}

func CreateUser(t *testing.T, repo user.Repository, uname, email string, isSuperuser bool, groups ...string) user.User {
	usr := newUser(t, uname, email, groups...)
	usr.IsSuperuser = isSuperuser
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo academic.Repository, uname, usn, branch string, semester int) academic.StudentAccount {
	acc, err := repo.CreateStudentAccount(context.Background(), academic.StudentAccount{
		User: newUser(t, uname, uname+"@test.edu"),
		Profile: academic.StudentProfile{
			USN:      usn,
			Branch:   branch,
			Semester: semester,
			Section:  "A",
			Email:    uname + "@test.edu",
		},
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return acc
}

func CreateProctor(t *testing.T, repo academic.Repository, uname, department string) academic.ProctorAccount {
	acc, err := repo.CreateProctorAccount(context.Background(), academic.ProctorAccount{
		User:    newUser(t, uname, uname+"@test.edu"),
		Profile: academic.ProctorProfile{Department: department},
	})
	if err != nil {
		t.Fatalf("CreateProctor() failed: %v", err)
	}
	return acc
}

func CreateHOD(t *testing.T, repo academic.Repository, uname, department string) academic.HODAccount {
	acc, err := repo.CreateHODAccount(context.Background(), academic.HODAccount{
		User:    newUser(t, uname, uname+"@test.edu", user.GroupHOD),
		Profile: academic.HODProfile{Department: department},
	})
	if err != nil {
		t.Fatalf("CreateHOD() failed: %v", err)
	}
	return acc
}

func Assign(t *testing.T, repo academic.Repository, proctorUserID string, studentIDs ...string) {
	if err := repo.AssignProctor(context.Background(), studentIDs, proctorUserID); err != nil {
		t.Fatalf("Assign() failed: %v", err)
	}
}

// Principal resolves usr the way the API does on every request.
func Principal(t *testing.T, svc *academic.Service, usr user.User) access.Principal {
	p, err := svc.Resolve(context.Background(), usr)
	if err != nil {
		t.Fatalf("Principal() failed: %v", err)
	}
	return p
}
