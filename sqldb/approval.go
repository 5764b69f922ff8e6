package sqldb

import (
	"database/sql"
	"time"

	"github.com/contentflow/contentflow/core"
)

type ApprovalDB struct {
	*sql.DB
	complete       *sql.Stmt
	countApproved  *sql.Stmt
	get            *sql.Stmt
	getApprovers   *sql.Stmt
	getByWorkflow  *sql.Stmt
	getPending     *sql.Stmt
	getResponses   *sql.Stmt
	hasResponded   *sql.Stmt
	insert         *sql.Stmt
	insertApprover *sql.Stmt
	insertResponse *sql.Stmt
	isApprover     *sql.Stmt
}

func NewApprovalDB(db *sql.DB) *ApprovalDB {

	createEngineSchema(db)

	var approvalDB = &ApprovalDB{}
	approvalDB.DB = db
	approvalDB.complete = mustPrepare(db, "UPDATE approval SET status = ?, ts_completed = ? WHERE id = ?")
	approvalDB.countApproved = mustPrepare(db, "SELECT COUNT(1) FROM approval_response WHERE approvalId = ? AND decision = 'approved'")
	approvalDB.get = mustPrepare(db, "SELECT id, workflowId, requestedBy, requiredApprovals, status, ts_requested, ts_completed FROM approval WHERE id = ? AND tenantId = ? LIMIT 1")
	approvalDB.getApprovers = mustPrepare(db, "SELECT userId FROM approval_approver WHERE approvalId = ? ORDER BY userId")
	approvalDB.getByWorkflow = mustPrepare(db, "SELECT id, workflowId, requestedBy, requiredApprovals, status, ts_requested, ts_completed FROM approval WHERE workflowId = ? AND tenantId = ? ORDER BY id")
	approvalDB.getPending = mustPrepare(db, "SELECT a.id, a.workflowId, a.requestedBy, a.requiredApprovals, a.status, a.ts_requested, a.ts_completed FROM approval a, approval_approver p WHERE a.tenantId = ? AND a.status = 'pending' AND p.approvalId = a.id AND p.userId = ? AND NOT EXISTS (SELECT 1 FROM approval_response r WHERE r.approvalId = a.id AND r.userId = p.userId) ORDER BY a.id")
	approvalDB.getResponses = mustPrepare(db, "SELECT id, userId, decision, comment, ts_created FROM approval_response WHERE approvalId = ? ORDER BY id")
	approvalDB.hasResponded = mustPrepare(db, "SELECT COUNT(1) FROM approval_response WHERE approvalId = ? AND userId = ?")
	approvalDB.insert = mustPrepare(db, "INSERT INTO approval (tenantId, workflowId, requestedBy, requiredApprovals, status, ts_requested) VALUES (?, ?, ?, ?, 'pending', ?)")
	approvalDB.insertApprover = mustPrepare(db, "INSERT INTO approval_approver (approvalId, userId) VALUES (?, ?)")
	approvalDB.insertResponse = mustPrepare(db, "INSERT INTO approval_response (approvalId, userId, decision, comment, ts_created) VALUES (?, ?, ?, ?, ?)")
	approvalDB.isApprover = mustPrepare(db, "SELECT COUNT(1) FROM approval_approver WHERE approvalId = ? AND userId = ?")
	return approvalDB
}

func (db *ApprovalDB) Writeable() bool {
	return true
}

func (db *ApprovalDB) InsertApproval(tenantID, workflowID, requestedBy int, approvers []int, requiredApprovals int) (*core.Approval, error) {

	var now = time.Now().Unix()

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}

	res, err := tx.Stmt(db.insert).Exec(tenantID, workflowID, requestedBy, requiredApprovals, now)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, userID := range approvers {
		if _, err := tx.Stmt(db.insertApprover).Exec(id, userID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &core.Approval{
		ID:                int(id),
		TenantID:          tenantID,
		WorkflowID:        workflowID,
		RequestedBy:       requestedBy,
		Approvers:         approvers,
		RequiredApprovals: requiredApprovals,
		Status:            core.StatusPending,
		TsRequested:       now,
		Responses:         []core.ApprovalResponse{},
	}, nil
}

// scanApproval scans one approval row and loads its approver set and responses.
func (db *ApprovalDB) scanApproval(tenantID int, row interface {
	Scan(dest ...interface{}) error
}) (*core.Approval, error) {

	var a = &core.Approval{
		TenantID: tenantID,
	}
	var status string

	err := row.Scan(&a.ID, &a.WorkflowID, &a.RequestedBy, &a.RequiredApprovals, &status, &a.TsRequested, &a.TsCompleted)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = core.ApprovalStatus(status)

	approverRows, err := db.getApprovers.Query(a.ID)
	if err != nil {
		return nil, err
	}
	defer approverRows.Close()
	a.Approvers = []int{}
	for approverRows.Next() {
		var userID int
		if err = approverRows.Scan(&userID); err != nil {
			return nil, err
		}
		a.Approvers = append(a.Approvers, userID)
	}

	a.Responses, err = db.responses(a.ID)
	return a, err
}

func (db *ApprovalDB) responses(approvalID int) ([]core.ApprovalResponse, error) {

	rows, err := db.getResponses.Query(approvalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses = []core.ApprovalResponse{}

	for rows.Next() {
		var r = core.ApprovalResponse{
			ApprovalID: approvalID,
		}
		var decision string
		if err = rows.Scan(&r.ID, &r.UserID, &decision, &r.Comment, &r.TsCreated); err != nil {
			return nil, err
		}
		r.Decision = core.Decision(decision)
		responses = append(responses, r)
	}

	return responses, nil
}

func (db *ApprovalDB) GetApproval(tenantID, approvalID int) (*core.Approval, error) {
	return db.scanApproval(tenantID, db.get.QueryRow(approvalID, tenantID))
}

func (db *ApprovalDB) GetWorkflowApprovals(tenantID, workflowID int) ([]*core.Approval, error) {

	rows, err := db.getByWorkflow.Query(workflowID, tenantID)
	if err != nil {
		return nil, err
	}

	var all, scanErr = db.collect(tenantID, rows)
	return all, scanErr
}

func (db *ApprovalDB) GetPendingApprovals(tenantID, userID int) ([]*core.Approval, error) {

	rows, err := db.getPending.Query(tenantID, userID)
	if err != nil {
		return nil, err
	}

	var all, scanErr = db.collect(tenantID, rows)
	return all, scanErr
}

// collect drains the rows first, then loads approvers and responses. SQLite
// dislikes nested queries on one connection while a result set is open.
func (db *ApprovalDB) collect(tenantID int, rows *sql.Rows) ([]*core.Approval, error) {

	type rawApproval struct {
		a      core.Approval
		status string
	}

	var raw = []rawApproval{}
	for rows.Next() {
		var r rawApproval
		if err := rows.Scan(&r.a.ID, &r.a.WorkflowID, &r.a.RequestedBy, &r.a.RequiredApprovals, &r.status, &r.a.TsRequested, &r.a.TsCompleted); err != nil {
			rows.Close()
			return nil, err
		}
		raw = append(raw, r)
	}
	rows.Close()

	var all = []*core.Approval{}
	for i := range raw {
		var a = raw[i].a
		a.TenantID = tenantID
		a.Status = core.ApprovalStatus(raw[i].status)

		approverRows, err := db.getApprovers.Query(a.ID)
		if err != nil {
			return nil, err
		}
		a.Approvers = []int{}
		for approverRows.Next() {
			var userID int
			if err = approverRows.Scan(&userID); err != nil {
				approverRows.Close()
				return nil, err
			}
			a.Approvers = append(a.Approvers, userID)
		}
		approverRows.Close()

		if a.Responses, err = db.responses(a.ID); err != nil {
			return nil, err
		}

		all = append(all, &a)
	}

	return all, nil
}

// InsertResponse records one vote and recomputes the aggregated status, all in
// one transaction. The status recount re-queries the response table inside the
// transaction instead of trusting any value read earlier, so concurrent votes
// serialize on the row writes. The UNIQUE(approvalId, userId) constraint is
// the backstop against duplicate votes; the explicit pre-check makes the error
// deterministic instead of driver-specific.
func (db *ApprovalDB) InsertResponse(tenantID, approvalID, userID int, decision core.Decision, comment string) (*core.ApprovalResponse, error) {

	var now = time.Now().Unix()

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}

	var id, workflowID, requestedBy, requiredApprovals int
	var status string
	var tsRequested, tsCompleted int64
	err = tx.Stmt(db.get).QueryRow(approvalID, tenantID).Scan(&id, &workflowID, &requestedBy, &requiredApprovals, &status, &tsRequested, &tsCompleted)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, core.ErrNotFound
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if core.ApprovalStatus(status) != core.StatusPending {
		tx.Rollback()
		return nil, core.ErrApprovalResolved
	}

	var isApprover int
	if err := tx.Stmt(db.isApprover).QueryRow(approvalID, userID).Scan(&isApprover); err != nil {
		tx.Rollback()
		return nil, err
	}
	if isApprover == 0 {
		tx.Rollback()
		return nil, core.ErrNotAnApprover
	}

	var responded int
	if err := tx.Stmt(db.hasResponded).QueryRow(approvalID, userID).Scan(&responded); err != nil {
		tx.Rollback()
		return nil, err
	}
	if responded > 0 {
		tx.Rollback()
		return nil, core.ErrAlreadyResponded
	}

	res, err := tx.Stmt(db.insertResponse).Exec(approvalID, userID, string(decision), comment, now)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	responseID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// one rejection resolves the approval, approvals need the full quorum
	if decision == core.DecisionRejected {
		if _, err := tx.Stmt(db.complete).Exec(string(core.StatusRejected), now, approvalID); err != nil {
			tx.Rollback()
			return nil, err
		}
	} else {
		var approved int
		if err := tx.Stmt(db.countApproved).QueryRow(approvalID).Scan(&approved); err != nil {
			tx.Rollback()
			return nil, err
		}
		if approved >= requiredApprovals {
			if _, err := tx.Stmt(db.complete).Exec(string(core.StatusApproved), now, approvalID); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &core.ApprovalResponse{
		ID:         int(responseID),
		ApprovalID: approvalID,
		UserID:     userID,
		Decision:   decision,
		Comment:    comment,
		TsCreated:  now,
	}, nil
}
