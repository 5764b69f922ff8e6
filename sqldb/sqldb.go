// Package sqldb implements the store interfaces of core and auth on a
// transactional SQL database. Every table carries a tenantId column; every
// query is scoped by it, so a cross-tenant row behaves like a missing row.
package sqldb

import (
	"database/sql"
)

func mustPrepare(db *sql.DB, query string) *sql.Stmt {
	stmt, err := db.Prepare(query)
	if err != nil {
		panic(err)
	}
	return stmt
}

// createEngineSchema creates the workflow and approval tables. Both
// NewWorkflowDB and NewApprovalDB call it (it is idempotent) because the
// publish gate of WorkflowDB.UpdateState prepares a statement against the
// approval table.
func createEngineSchema(db *sql.DB) {

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow (
			id INTEGER PRIMARY KEY,
			tenantId int(11) NOT NULL,
			contentId int(11) NOT NULL,
			state varchar(32) NOT NULL,
			ts_created INTEGER NOT NULL,
			ts_changed INTEGER NOT NULL,
			UNIQUE (tenantId, contentId)
		);
		CREATE TABLE IF NOT EXISTS workflow_event (
			id INTEGER PRIMARY KEY,
			tenantId int(11) NOT NULL,
			workflowId int(11) NOT NULL,
			fromState varchar(32), /* NULL for the creation event */
			toState varchar(32) NOT NULL,
			userId int(11) NOT NULL,
			reason text NOT NULL,
			ts_created INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS workflow_comment (
			id INTEGER PRIMARY KEY,
			tenantId int(11) NOT NULL,
			workflowId int(11) NOT NULL,
			parentId int(11) NOT NULL DEFAULT '0',
			userId int(11) NOT NULL,
			state varchar(32) NOT NULL,
			content text NOT NULL,
			resolved int(1) NOT NULL DEFAULT '0',
			ts_created INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS approval (
			id INTEGER PRIMARY KEY,
			tenantId int(11) NOT NULL,
			workflowId int(11) NOT NULL,
			requestedBy int(11) NOT NULL,
			requiredApprovals int(11) NOT NULL,
			status varchar(16) NOT NULL,
			ts_requested INTEGER NOT NULL,
			ts_completed INTEGER NOT NULL DEFAULT '0'
		);
		CREATE TABLE IF NOT EXISTS approval_approver (
			approvalId int(11) NOT NULL,
			userId int(11) NOT NULL,
			PRIMARY KEY (approvalId, userId)
		);
		CREATE TABLE IF NOT EXISTS approval_response (
			id INTEGER PRIMARY KEY,
			approvalId int(11) NOT NULL,
			userId int(11) NOT NULL,
			decision varchar(16) NOT NULL,
			comment text NOT NULL,
			ts_created INTEGER NOT NULL,
			UNIQUE (approvalId, userId) /* at most one vote per approver, enforced here, not in application code */
		);`)
	if err != nil {
		panic(err)
	}
}
