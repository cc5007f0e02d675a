package inmemdb

import (
	"context"

	"github.com/trezcool/microlms/core/auth"
	"github.com/trezcool/microlms/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) SeedRoles(_ context.Context, roles []auth.Role) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, role := range roles {
		repo.db.roles[role] = struct{}{}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.users[usr.ID] = cloneUser(usr)
	return *cloneUser(usr), nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, u := range repo.db.users {
		if matchUser(*u, filter) {
			return *cloneUser(*u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		if u.ID != usr.ID && u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.users[usr.ID] = cloneUser(usr)
	return *cloneUser(usr), nil
}

func (repo *userRepository) DeleteUser(_ context.Context, id string) ([]string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[id]; !ok {
		return nil, user.ErrNotFound
	}

	var refs []string
	for subID, sub := range repo.db.submissions {
		if sub.StudentID == id {
			refs = append(refs, sub.FilePaths...)
			delete(repo.db.submissions, subID)
		}
	}
	for crsID, crs := range repo.db.courses {
		if crs.TeacherID == id {
			refs = append(refs, repo.db.deleteCourse(crsID)...)
			continue
		}
		crs.StudentIDs = removeString(crs.StudentIDs, id)
	}
	delete(repo.db.users, id)
	return refs, nil
}

func matchUser(u user.User, filter user.GetFilter) bool {
	switch {
	case filter.ID != "":
		return u.ID == filter.ID
	case filter.Email != "":
		return u.Email == filter.Email
	case filter.VerificationCode != "":
		return u.VerificationCode == filter.VerificationCode
	case filter.ResetCode != "":
		return u.ResetCode == filter.ResetCode
	default:
		return false
	}
}

func cloneUser(u user.User) *user.User {
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	u.Roles = append(auth.Roles(nil), u.Roles...)
	return &u
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
