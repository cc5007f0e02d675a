package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/auth"
)

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name"`
	PasswordHash     []byte     `json:"-"`
	Enabled          bool       `json:"enabled"`
	VerificationCode string     `json:"-"` // empty once verified
	ResetCode        string     `json:"-"`
	ResetCodeExpiry  time.Time  `json:"-"` // UTC
	Roles            auth.Roles `json:"roles"`
	CreatedAt        time.Time  `json:"created_at"` // UTC
	UpdatedAt        time.Time  `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) Identity() auth.Identity {
	return auth.Identity{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.FullName,
		Roles:  u.Roles,
	}
}

func (u *User) resetCodeValid(now time.Time) bool {
	return u.ResetCode != "" && !now.After(u.ResetCodeExpiry)
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Email    string   `json:"email" validate:"required,email"`
	FullName string   `json:"full_name" validate:"required,notblank"`
	Password string   `json:"password" validate:"required"`
	Roles    []string `json:"roles" validate:"required,min=1"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FullName = core.CleanString(nu.FullName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// UpdateProfile carries exactly one of FullName or Password.
type UpdateProfile struct {
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type ResetUserPassword struct {
	Code     string `json:"code" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Code = core.CleanString(rp.Code)
	return validate.Struct(rp)
}

// GetFilter selects a single user by one of its unique fields.
type GetFilter struct {
	ID               string
	Email            string
	VerificationCode string
	ResetCode        string
}
