package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/auth"
	"github.com/trezcool/microlms/core/user"
)

const selectUsers = `
SELECT u.*, COALESCE(array_agg(ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}') AS roles
FROM users u LEFT JOIN user_roles ur ON ur.user_id = u.id`

type userRow struct {
	ID               string         `db:"id"`
	Email            string         `db:"email"`
	FullName         string         `db:"full_name"`
	PasswordHash     []byte         `db:"password_hash"`
	Enabled          bool           `db:"enabled"`
	VerificationCode null.String    `db:"verification_code"`
	ResetCode        null.String    `db:"reset_code"`
	ResetCodeExpiry  null.Time      `db:"reset_code_expiry"`
	Roles            pq.StringArray `db:"roles"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:               usr.ID,
		Email:            usr.Email,
		FullName:         usr.FullName,
		PasswordHash:     usr.PasswordHash,
		Enabled:          usr.Enabled,
		VerificationCode: null.NewString(usr.VerificationCode, usr.VerificationCode != ""),
		ResetCode:        null.NewString(usr.ResetCode, usr.ResetCode != ""),
		ResetCodeExpiry:  null.NewTime(usr.ResetCodeExpiry.UTC(), !usr.ResetCodeExpiry.IsZero()),
		CreatedAt:        usr.CreatedAt.UTC(),
		UpdatedAt:        usr.UpdatedAt.UTC(),
	}
}

func (repo userRepository) fromRow(row userRow) (user.User, error) {
	roles, err := auth.ParseRoles(row.Roles)
	if err != nil {
		return user.User{}, errors.Wrap(err, "parsing user roles")
	}
	return user.User{
		ID:               row.ID,
		Email:            row.Email,
		FullName:         row.FullName,
		PasswordHash:     row.PasswordHash,
		Enabled:          row.Enabled,
		VerificationCode: row.VerificationCode.String,
		ResetCode:        row.ResetCode.String,
		ResetCodeExpiry:  row.ResetCodeExpiry.Time.UTC(),
		Roles:            roles,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
}

func (repo userRepository) SeedRoles(ctx context.Context, roles []auth.Role) error {
	for _, role := range roles {
		if _, err := repo.db.ExecContext(ctx, "INSERT INTO roles (name) VALUES ($1) ON CONFLICT DO NOTHING", role.String()); err != nil {
			return errors.Wrapf(err, "inserting role %s", role)
		}
	}
	return nil
}

func (repo userRepository) setRoles(ctx context.Context, tx *sqlx.Tx, usr user.User) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = $1", usr.ID); err != nil {
		return errors.Wrap(err, "clearing user roles")
	}
	for _, role := range usr.Roles {
		if _, err := tx.ExecContext(ctx, "INSERT INTO user_roles (user_id, role) VALUES ($1, $2)", usr.ID, role.String()); err != nil {
			return errors.Wrap(err, "inserting user role")
		}
	}
	return nil
}

func (repo userRepository) mapWriteErr(err error, msg string) error {
	if code, constraint := pqError(err); code == uniqueViolation && constraint == "users_email_key" {
		return user.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := repo.toRow(usr)
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO users (id, email, full_name, password_hash, enabled, verification_code, reset_code,
				reset_code_expiry, created_at, updated_at)
			VALUES (:id, :email, :full_name, :password_hash, :enabled, :verification_code, :reset_code,
				:reset_code_expiry, :created_at, :updated_at)`, row)
		if err != nil {
			return repo.mapWriteErr(err, "inserting user")
		}
		return repo.setRoles(ctx, tx, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var where string
	var arg interface{}
	switch {
	case filter.ID != "":
		where, arg = "u.id = $1", filter.ID
	case filter.Email != "":
		where, arg = "u.email = $1", filter.Email
	case filter.VerificationCode != "":
		where, arg = "u.verification_code = $1", filter.VerificationCode
	case filter.ResetCode != "":
		where, arg = "u.reset_code = $1", filter.ResetCode
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.db.GetContext(ctx, &row, selectUsers+" WHERE "+where+" GROUP BY u.id", arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.fromRow(row)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := repo.toRow(usr)
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			UPDATE users SET email = :email, full_name = :full_name, password_hash = :password_hash,
				enabled = :enabled, verification_code = :verification_code, reset_code = :reset_code,
				reset_code_expiry = :reset_code_expiry, updated_at = :updated_at
			WHERE id = :id`, row)
		if err != nil {
			return repo.mapWriteErr(err, "updating user")
		}
		if ok, err := rowsAffected(res); err != nil {
			return err
		} else if !ok {
			return user.ErrNotFound
		}
		return repo.setRoles(ctx, tx, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo userRepository) DeleteUser(ctx context.Context, id string) ([]string, error) {
	var refs []string
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var ownedCourses []string
		if err := tx.SelectContext(ctx, &ownedCourses, "SELECT id FROM courses WHERE teacher_id = $1", id); err != nil {
			return errors.Wrap(err, "listing owned courses")
		}
		for _, crsID := range ownedCourses {
			crsRefs, err := deleteCourse(ctx, tx, crsID)
			if err != nil {
				return err
			}
			refs = append(refs, crsRefs...)
		}

		var subRefs []string
		if err := tx.SelectContext(ctx, &subRefs, "SELECT unnest(file_paths) FROM submissions WHERE student_id = $1", id); err != nil {
			return errors.Wrap(err, "listing submission files")
		}
		refs = append(refs, subRefs...)

		for _, q := range []string{
			"DELETE FROM submissions WHERE student_id = $1",
			"DELETE FROM course_students WHERE student_id = $1",
			"DELETE FROM user_roles WHERE user_id = $1",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return errors.Wrap(err, "deleting user relations")
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
		if err != nil {
			return errors.Wrap(err, "deleting user")
		}
		if ok, err := rowsAffected(res); err != nil {
			return err
		} else if !ok {
			return user.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
