package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/spis/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when taken by a user not in excludedIDs.
		CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CheckUniqueness maps taken usernames/emails to core.ConflictError.
func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedIDs...); err != nil {
		switch errors.Cause(err) {
		case ErrUsernameExists:
			return core.NewConflictError("username", ErrUsernameExists.Error())
		case ErrEmailExists:
			return core.NewConflictError("email", ErrEmailExists.Error())
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
	}
	return nil
}

// Create stores a new active user. Used by the admin CLI; signups go through the academic service.
func (svc *Service) Create(ctx context.Context, nu NewUser, isSuperuser bool, groups ...string) (User, error) {
	if err := svc.CheckUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}
	usr, err := nu.Build(groups...)
	if err != nil {
		return User{}, errors.Wrap(err, "building user")
	}
	usr.IsSuperuser = isSuperuser
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) ResetPassword(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// JoinGroup adds usr to a group and activates them.
func (svc *Service) JoinGroup(ctx context.Context, usr User, group string) (User, error) {
	usr.AddGroup(group)
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
