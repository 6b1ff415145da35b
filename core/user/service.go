package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cuota/core"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("user not found")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrUsernameExists   = errors.New("a user with this username already exists")
	ErrInvalidResetLink = errors.New("the password reset link is invalid or has expired")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when taken.
		CheckUsernameUniqueness(ctx context.Context, username, email string) error
		CreateUser(ctx context.Context, user User) (User, error)
		GetUserByID(ctx context.Context, id int64) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// GetUserByUsernameOrEmail matches `username` against User.Username or User.Email.
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  *tokenGenerator

		frontendBaseURL string
		nowFunc         func() time.Time
	}

	resetMailData struct {
		Name     string
		Username string
		UID      string
		Token    string
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:            repo,
		mailSvc:         mailSvc,
		tokens:          newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		frontendBaseURL: conf.FrontendBaseURL,
		nowFunc:         time.Now,
	}
}

func (svc *Service) checkUniqueness(uname, email string) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

// Create stores a new active User. `nu` must have been validated.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := svc.nowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = svc.nowFunc().UTC()
	return svc.repo.SetLastLogin(ctx, usr)
}

// RequestPasswordReset emails a password reset link to the active User owning `email`.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.mailSvc.SendMessages(svc.passwordResetMail(usr))
	return nil
}

func (svc *Service) passwordResetMail(usr User) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: resetMailData{
			Name:     usr.Name,
			Username: usr.Username,
			UID:      EncodeUID(usr),
			Token:    svc.tokens.makeToken(usr),
		},
		FrontendBaseURL: svc.frontendBaseURL,
	}
}

// ResetPassword sets a new password for the User identified by the reset link. `data` must have been validated.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidLink := core.NewValidationError(ErrInvalidResetLink)

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidLink
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return invalidLink
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive || svc.tokens.verifyToken(usr, data.Token) != nil {
		return invalidLink
	}
	if err = passwordPolicyError(data.Password, usr); err != nil {
		return err
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = svc.nowFunc().UTC()
	_, err = svc.repo.SetPassword(ctx, usr)
	return errors.Wrap(err, "saving password")
}

// ChangePassword sets a new password for `usr` without a reset link; used by the admin CLI.
func (svc *Service) ChangePassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := passwordPolicyError(pwd, usr); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.SetPassword(ctx, usr)
}
