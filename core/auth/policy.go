package auth

import "github.com/trezcool/microlms/core"

var ErrForbidden = core.NewError(core.KindForbidden, "permission denied")

type (
	// OwnedResource is anything owned by a single user, e.g. a course.
	OwnedResource interface {
		OwnerID() string
	}

	// Roster is a set of enrolled students.
	Roster interface {
		HasStudent(userID string) bool
	}
)

func RequireAuthenticated(id Identity) error {
	if id.IsAnonymous() {
		return ErrUnauthenticated
	}
	return nil
}

func RequireRole(id Identity, role Role) error {
	if id.IsAnonymous() || !id.HasRole(role) {
		return ErrForbidden
	}
	return nil
}

func RequireCourseOwner(id Identity, res OwnedResource) error {
	if id.IsAnonymous() || res.OwnerID() != id.UserID {
		return ErrForbidden
	}
	return nil
}

func RequireEnrolled(id Identity, roster Roster) error {
	if id.IsAnonymous() || !roster.HasStudent(id.UserID) {
		return ErrForbidden
	}
	return nil
}

// All returns the first failed check, e.g.
// All(RequireRole(id, RoleTeacher), RequireCourseOwner(id, course)).
func All(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
