package inmemdb

import (
	"sync"

	"github.com/trezcool/microlms/core/auth"
	"github.com/trezcool/microlms/core/course"
	"github.com/trezcool/microlms/core/submission"
	"github.com/trezcool/microlms/core/user"
)

// DB keeps every table behind a single lock so that cascades and check-and-insert are atomic.
type DB struct {
	sync.RWMutex

	roles       map[auth.Role]struct{}
	users       map[string]*user.User
	courses     map[string]*course.Course
	assignments map[string]*course.Assignment
	submissions map[string]*submission.Submission
}

func Open() *DB {
	return &DB{
		roles:       make(map[auth.Role]struct{}),
		users:       make(map[string]*user.User),
		courses:     make(map[string]*course.Course),
		assignments: make(map[string]*course.Assignment),
		submissions: make(map[string]*submission.Submission),
	}
}

// deleteAssignment must be called with the write lock held.
func (db *DB) deleteAssignment(id string) []string {
	asg, ok := db.assignments[id]
	if !ok {
		return nil
	}
	refs := append([]string(nil), asg.Materials...)
	for subID, sub := range db.submissions {
		if sub.AssignmentID == id {
			refs = append(refs, sub.FilePaths...)
			delete(db.submissions, subID)
		}
	}
	delete(db.assignments, id)
	return refs
}

// deleteCourse must be called with the write lock held.
func (db *DB) deleteCourse(id string) []string {
	var refs []string
	for asgID, asg := range db.assignments {
		if asg.CourseID == id {
			refs = append(refs, db.deleteAssignment(asgID)...)
		}
	}
	delete(db.courses, id)
	return refs
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
