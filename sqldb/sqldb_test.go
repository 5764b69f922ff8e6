package sqldb

import (
	"database/sql"
	"testing"

	"github.com/contentflow/contentflow/auth"
	"github.com/contentflow/contentflow/core"
	_ "github.com/mattn/go-sqlite3"
)

// grantAll is a permission oracle for tests which says yes to everything.
type grantAll struct{}

func (grantAll) HasPermission(userID, tenantID int, p auth.Permission) (bool, error) {
	return true, nil
}

// grantSet says yes to the listed tokens only.
type grantSet map[auth.Permission]bool

func (g grantSet) HasPermission(userID, tenantID int, p auth.Permission) (bool, error) {
	return g[p], nil
}

func newTestDB(t *testing.T) *core.CoreDB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1) // a :memory: database exists per connection
	t.Cleanup(func() {
		sqlDB.Close()
	})

	var db = &core.CoreDB{}
	db.WorkflowDB = NewWorkflowDB(sqlDB)
	db.ApprovalDB = NewApprovalDB(sqlDB)
	db.Audit = NewAuditDB(sqlDB)
	db.Perms = grantAll{}
	db.SqlDB = sqlDB
	return db
}

// drive moves a workflow along the given states, failing the test on any error.
func drive(t *testing.T, db *core.CoreDB, workflowID int, actor core.Actor, states ...core.State) {
	t.Helper()
	for _, to := range states {
		if err := db.TransitionState(workflowID, to, actor, ""); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
}
