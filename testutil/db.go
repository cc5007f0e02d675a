package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/storage/database"
)

// DBHostEnv names the variable that points the PostgreSQL tests to a server.
const DBHostEnv = "TEST_DATABASE_HOST"

// OpenDB connects to the migrated TEST database and empties it.
// The test is skipped when no database host is configured.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()

	if os.Getenv(DBHostEnv) == "" {
		t.Skipf("%s is not set", DBHostEnv)
	}
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		t.Fatalf("CreateIfNotExist() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, "up"); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	_, err = db.ExecContext(ctx, "TRUNCATE submissions, assignments, course_students, courses, user_roles, users CASCADE")
	if err != nil {
		t.Fatalf("truncating tables failed: %v", err)
	}
	return db
}
