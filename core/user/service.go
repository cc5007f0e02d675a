package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/auth"
)

var (
	// errors
	ErrNotFound           = core.NewError(core.KindNotFound, "user not found")
	ErrEmailExists        = core.NewError(core.KindConflict, "a user with this email already exists")
	ErrRoleElevation      = core.NewError(core.KindForbidden, "this role cannot be self-assigned")
	ErrAccountNotVerified = core.NewError(core.KindForbidden, "account not verified, please verify your email")
	ErrInvalidUpdate      = core.NewError(core.KindInvalidState, "exactly one of full_name or password must be provided")
)

type (
	Repository interface {
		SeedRoles(ctx context.Context, roles []auth.Role) error
		// CreateUser fails with ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// DeleteUser removes the user with their submissions, enrollments and owned courses.
		// It returns the references of the files attached to the removed records.
		DeleteUser(ctx context.Context, id string) ([]string, error)
	}

	Service struct {
		repo         Repository
		mailSvc      core.EmailService
		files        core.FileStorage
		logger       core.Logger
		validate     *validator.Validate
		resetTimeout time.Duration
		now          core.NowFunc
	}
)

var _ auth.IdentityResolver = (*Service)(nil)

func NewService(
	conf *core.Config,
	repo Repository,
	mailSvc core.EmailService,
	files core.FileStorage,
	logger core.Logger,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:         repo,
		mailSvc:      mailSvc,
		files:        files,
		logger:       logger,
		validate:     validate,
		resetTimeout: conf.PasswordResetTimeout,
		now:          core.UTCNow,
	}
}

// SetNowFunc replaces the service clock.
func (svc *Service) SetNowFunc(now core.NowFunc) {
	svc.now = now
}

// SeedRoles makes sure every known role exists in storage.
func (svc *Service) SeedRoles(ctx context.Context) error {
	return errors.Wrap(svc.repo.SeedRoles(ctx, auth.AllRoles), "seeding roles")
}

// Register creates a disabled account and sends its verification code.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if _, err := svc.repo.GetUser(ctx, GetFilter{Email: nu.Email}); err == nil {
		return User{}, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, errors.Wrap(err, "checking email uniqueness")
	}

	roles, err := auth.ParseRoles(nu.Roles)
	if err != nil {
		return User{}, err
	}
	for _, role := range roles {
		if !role.SelfAssignable() {
			return User{}, ErrRoleElevation
		}
	}

	now := svc.now()
	usr := User{
		ID:               uuid.New().String(),
		Email:            nu.Email,
		FullName:         nu.FullName,
		Enabled:          false,
		VerificationCode: uuid.New().String(),
		Roles:            roles,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	if usr, err = svc.repo.CreateUser(ctx, usr); err != nil {
		return User{}, err
	}

	svc.sendVerificationMail(usr)
	return usr, nil
}

// CreateAdmin creates (or re-enables) an ADMIN account. Only reachable from the admin CLI.
func (svc *Service) CreateAdmin(ctx context.Context, email, name, pwd string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "email", Error: "invalid email"})
	}
	if err := validateNewPassword(pwd, name, email); err != nil {
		return User{}, err
	}

	now := svc.now()
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: email})
	switch {
	case err == nil:
		usr.Roles = usr.Roles.Add(auth.RoleAdmin)
		usr.Enabled = true
		usr.VerificationCode = ""
		if name != "" {
			usr.FullName = name
		}
		usr.UpdatedAt = now
		if err := usr.SetPassword(pwd); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
		return svc.repo.UpdateUser(ctx, usr)
	case errors.Is(err, ErrNotFound):
		usr = User{
			ID:        uuid.New().String(),
			Email:     email,
			FullName:  name,
			Enabled:   true,
			Roles:     auth.Roles{auth.RoleAdmin},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := usr.SetPassword(pwd); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
		return svc.repo.CreateUser(ctx, usr)
	default:
		return User{}, errors.Wrap(err, "finding user by email")
	}
}

// Verify enables the account holding code. It returns false when no account holds it.
func (svc *Service) Verify(ctx context.Context, code string) (bool, error) {
	code = core.CleanString(code)
	if code == "" {
		return false, nil
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{VerificationCode: code})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "finding user by verification code")
	}
	usr.Enabled = true
	usr.VerificationCode = ""
	usr.UpdatedAt = svc.now()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return false, errors.Wrap(err, "enabling user")
	}
	return true, nil
}

// Authenticate returns nil (and no error) for an unknown email or a wrong password.
// A disabled account gets a fresh verification code and fails with ErrAccountNotVerified.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (*User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding user by email")
	}

	if !usr.Enabled {
		usr.VerificationCode = uuid.New().String()
		usr.UpdatedAt = svc.now()
		if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
			return nil, errors.Wrap(err, "renewing verification code")
		}
		svc.sendVerificationMail(usr)
		return nil, ErrAccountNotVerified
	}

	if err := usr.CheckPassword(pwd); err != nil {
		return nil, nil
	}
	return &usr, nil
}

// InitiateReset replaces any previous reset code of the user and mails the new one.
func (svc *Service) InitiateReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	now := svc.now()
	usr.ResetCode = uuid.New().String()
	usr.ResetCodeExpiry = now.Add(svc.resetTimeout)
	usr.UpdatedAt = now
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "saving reset code")
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

// ValidateResetCode reports whether code is a live reset code.
func (svc *Service) ValidateResetCode(ctx context.Context, code string) bool {
	code = core.CleanString(code)
	if code == "" {
		return false
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ResetCode: code})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			svc.logger.Error(fmt.Sprintf("finding user by reset code: %v", err), err)
		}
		return false
	}
	return usr.resetCodeValid(svc.now())
}

// CompleteReset sets the new password. It returns false for an unknown or expired code.
func (svc *Service) CompleteReset(ctx context.Context, rp ResetUserPassword) (bool, error) {
	if err := rp.Validate(svc.validate); err != nil {
		return false, err
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ResetCode: rp.Code})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "finding user by reset code")
	}
	now := svc.now()
	if !usr.resetCodeValid(now) {
		return false, nil
	}
	if err := validateNewPassword(rp.Password, usr.FullName, usr.Email); err != nil {
		return false, err
	}
	if err := usr.SetPassword(rp.Password); err != nil {
		return false, errors.Wrap(err, "hashing password")
	}
	usr.ResetCode = ""
	usr.ResetCodeExpiry = time.Time{}
	usr.UpdatedAt = now
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return false, errors.Wrap(err, "resetting password")
	}
	return true, nil
}

// UpdateProfile changes either the full name or the password of the identity.
func (svc *Service) UpdateProfile(ctx context.Context, id auth.Identity, up UpdateProfile) (User, error) {
	if err := auth.RequireAuthenticated(id); err != nil {
		return User{}, err
	}
	// decided on the raw fields, before cleaning
	if (up.FullName == "") == (up.Password == "") {
		return User{}, ErrInvalidUpdate
	}
	name := core.CleanString(up.FullName)
	if up.FullName != "" && name == "" {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "full_name", Error: "this field cannot be blank"})
	}

	usr, err := svc.GetByEmail(ctx, id.Email)
	if err != nil {
		return User{}, err
	}
	if name != "" {
		usr.FullName = name
	} else {
		if err := validateNewPassword(up.Password, usr.FullName, usr.Email); err != nil {
			return User{}, err
		}
		if err := usr.SetPassword(up.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = svc.now()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword overwrites a user's password without any code. Only reachable from the admin CLI.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := validateNewPassword(pwd, usr.FullName, usr.Email); err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = svc.now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// DeleteAccount deletes the identity's own account.
func (svc *Service) DeleteAccount(ctx context.Context, id auth.Identity) error {
	if err := auth.RequireAuthenticated(id); err != nil {
		return err
	}
	return svc.delete(ctx, id.Email)
}

// DeleteAccountAsAdmin deletes any account; actor must hold ADMIN.
func (svc *Service) DeleteAccountAsAdmin(ctx context.Context, actor auth.Identity, targetEmail string) error {
	if err := auth.RequireRole(actor, auth.RoleAdmin); err != nil {
		return err
	}
	return svc.delete(ctx, targetEmail)
}

func (svc *Service) delete(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	refs, err := svc.repo.DeleteUser(ctx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	core.DeleteFiles(ctx, svc.files, svc.logger, refs...)
	return nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

// ResolveIdentity returns the live identity of an enabled user.
func (svc *Service) ResolveIdentity(ctx context.Context, email string) (auth.Identity, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return auth.Identity{}, err
	}
	if !usr.Enabled {
		return auth.Identity{}, ErrNotFound
	}
	return usr.Identity(), nil
}

// Mails

type (
	verificationMailData struct {
		Name string
		Code string
	}

	passwordResetMailData struct {
		Name      string
		Code      string
		ExpiresIn string
	}
)

func (svc *Service) sendVerificationMail(usr User) {
	svc.mailSvc.SendMessages(core.NewTemplatedMessage(
		mail.Address{Name: usr.FullName, Address: usr.Email},
		"Please verify your registration",
		"verify_email",
		verificationMailData{Name: usr.FullName, Code: usr.VerificationCode},
	))
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(core.NewTemplatedMessage(
		mail.Address{Name: usr.FullName, Address: usr.Email},
		"Password Reset Request",
		"password_reset",
		passwordResetMailData{Name: usr.FullName, Code: usr.ResetCode, ExpiresIn: svc.resetTimeout.String()},
	))
}
