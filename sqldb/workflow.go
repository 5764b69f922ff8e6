package sqldb

import (
	"database/sql"
	"time"

	"github.com/contentflow/contentflow/core"
)

type WorkflowDB struct {
	*sql.DB
	count           *sql.Stmt
	countApproved   *sql.Stmt
	deleteApprovals *sql.Stmt
	deleteApprovers *sql.Stmt
	deleteComments  *sql.Stmt
	deleteEvents    *sql.Stmt
	deleteResponses *sql.Stmt
	deleteWorkflow  *sql.Stmt
	get             *sql.Stmt
	getAll          *sql.Stmt
	getComments     *sql.Stmt
	getEvents       *sql.Stmt
	getState        *sql.Stmt
	insert          *sql.Stmt
	insertComment   *sql.Stmt
	insertEvent     *sql.Stmt
	resolveComment  *sql.Stmt
	updateState     *sql.Stmt
}

func NewWorkflowDB(db *sql.DB) *WorkflowDB {

	createEngineSchema(db)

	var workflowDB = &WorkflowDB{}
	workflowDB.DB = db
	workflowDB.count = mustPrepare(db, "SELECT COUNT(1) FROM workflow WHERE tenantId = ?")
	workflowDB.countApproved = mustPrepare(db, "SELECT COUNT(1) FROM approval WHERE workflowId = ? AND tenantId = ? AND status = 'approved'")
	workflowDB.deleteApprovals = mustPrepare(db, "DELETE FROM approval WHERE workflowId = ? AND tenantId = ?")
	workflowDB.deleteApprovers = mustPrepare(db, "DELETE FROM approval_approver WHERE approvalId IN (SELECT id FROM approval WHERE workflowId = ? AND tenantId = ?)")
	workflowDB.deleteComments = mustPrepare(db, "DELETE FROM workflow_comment WHERE workflowId = ? AND tenantId = ?")
	workflowDB.deleteEvents = mustPrepare(db, "DELETE FROM workflow_event WHERE workflowId = ? AND tenantId = ?")
	workflowDB.deleteResponses = mustPrepare(db, "DELETE FROM approval_response WHERE approvalId IN (SELECT id FROM approval WHERE workflowId = ? AND tenantId = ?)")
	workflowDB.deleteWorkflow = mustPrepare(db, "DELETE FROM workflow WHERE id = ? AND tenantId = ?")
	workflowDB.get = mustPrepare(db, "SELECT id, contentId, state, ts_created, ts_changed FROM workflow WHERE id = ? AND tenantId = ? LIMIT 1")
	workflowDB.getAll = mustPrepare(db, "SELECT id, contentId, state, ts_created, ts_changed FROM workflow WHERE tenantId = ? ORDER BY ts_changed DESC LIMIT ? OFFSET ?")
	workflowDB.getComments = mustPrepare(db, "SELECT id, parentId, userId, state, content, resolved, ts_created FROM workflow_comment WHERE workflowId = ? AND tenantId = ? ORDER BY id")
	workflowDB.getEvents = mustPrepare(db, "SELECT id, fromState, toState, userId, reason, ts_created FROM workflow_event WHERE workflowId = ? AND tenantId = ? ORDER BY id")
	workflowDB.getState = mustPrepare(db, "SELECT state FROM workflow WHERE id = ? AND tenantId = ? LIMIT 1")
	workflowDB.insert = mustPrepare(db, "INSERT INTO workflow (tenantId, contentId, state, ts_created, ts_changed) VALUES (?, ?, ?, ?, ?)")
	workflowDB.insertComment = mustPrepare(db, "INSERT INTO workflow_comment (tenantId, workflowId, parentId, userId, state, content, ts_created) VALUES (?, ?, ?, ?, ?, ?, ?)")
	workflowDB.insertEvent = mustPrepare(db, "INSERT INTO workflow_event (tenantId, workflowId, fromState, toState, userId, reason, ts_created) VALUES (?, ?, ?, ?, ?, ?, ?)")
	workflowDB.resolveComment = mustPrepare(db, "UPDATE workflow_comment SET resolved = ? WHERE id = ? AND tenantId = ?")
	workflowDB.updateState = mustPrepare(db, "UPDATE workflow SET state = ?, ts_changed = ? WHERE id = ? AND tenantId = ? AND state = ?")
	return workflowDB
}

func (db *WorkflowDB) Writeable() bool {
	return true
}

func (db *WorkflowDB) InsertWorkflow(tenantID, contentID, userID int) (*core.Workflow, error) {

	var now = time.Now().Unix()

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}

	res, err := tx.Stmt(db.insert).Exec(tenantID, contentID, string(core.InitialState), now, now)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// creation event, fromState is NULL
	_, err = tx.Stmt(db.insertEvent).Exec(tenantID, id, nil, string(core.InitialState), userID, "", now)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &core.Workflow{
		ID:        int(id),
		TenantID:  tenantID,
		ContentID: contentID,
		State:     core.InitialState,
		TsCreated: now,
		TsChanged: now,
	}, nil
}

func (db *WorkflowDB) GetWorkflow(tenantID, workflowID int) (*core.Workflow, error) {

	var w = &core.Workflow{
		TenantID: tenantID,
	}
	var state string

	err := db.get.QueryRow(workflowID, tenantID).Scan(&w.ID, &w.ContentID, &state, &w.TsCreated, &w.TsChanged)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	w.State = core.State(state)
	return w, nil
}

func (db *WorkflowDB) CountWorkflows(tenantID int) (int, error) {
	var count int
	return count, db.count.QueryRow(tenantID).Scan(&count)
}

func (db *WorkflowDB) GetAllWorkflows(tenantID int, limit, offset int) ([]*core.Workflow, error) {

	rows, err := db.getAll.Query(tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []*core.Workflow{}

	for rows.Next() {
		var w = &core.Workflow{
			TenantID: tenantID,
		}
		var state string
		if err = rows.Scan(&w.ID, &w.ContentID, &state, &w.TsCreated, &w.TsChanged); err != nil {
			return nil, err
		}
		w.State = core.State(state)
		all = append(all, w)
	}

	return all, nil
}

// UpdateState moves the workflow from exactly `from` to `to` and appends the
// event, in one transaction. The publish gate (requireApproved) re-queries the
// approval count inside the same transaction, so the approval status can't
// change between the check and the write. The conditional UPDATE guards
// against a concurrent transition: zero affected rows means the row is no
// longer at `from`.
func (db *WorkflowDB) UpdateState(tenantID, workflowID int, from, to core.State, userID int, reason string, requireApproved bool) error {

	var now = time.Now().Unix()

	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if requireApproved {
		var approved int
		if err := tx.Stmt(db.countApproved).QueryRow(workflowID, tenantID).Scan(&approved); err != nil {
			tx.Rollback()
			return err
		}
		if approved == 0 {
			tx.Rollback()
			return core.ErrApprovalRequired
		}
	}

	res, err := tx.Stmt(db.updateState).Exec(string(to), now, workflowID, tenantID, string(from))
	if err != nil {
		tx.Rollback()
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if affected == 0 {
		// a concurrent transition moved the workflow away from `from`
		tx.Rollback()
		return core.ErrInvalidTransition
	}

	_, err = tx.Stmt(db.insertEvent).Exec(tenantID, workflowID, string(from), string(to), userID, reason, now)
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// InsertComment reads the workflow's current state and inserts the comment in
// one transaction, so the state tag can't go stale between read and write.
func (db *WorkflowDB) InsertComment(tenantID, workflowID, parentID, userID int, content string) (*core.Comment, error) {

	var now = time.Now().Unix()

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}

	var state string
	err = tx.Stmt(db.getState).QueryRow(workflowID, tenantID).Scan(&state)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, core.ErrNotFound
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	res, err := tx.Stmt(db.insertComment).Exec(tenantID, workflowID, parentID, userID, state, content, now)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &core.Comment{
		ID:         int(id),
		WorkflowID: workflowID,
		ParentID:   parentID,
		UserID:     userID,
		State:      core.State(state),
		Content:    content,
		TsCreated:  now,
	}, nil
}

func (db *WorkflowDB) SetCommentResolved(tenantID, commentID int, resolved bool) error {

	res, err := db.resolveComment.Exec(resolved, commentID, tenantID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	return nil
}

func (db *WorkflowDB) GetEvents(tenantID, workflowID int) ([]core.WorkflowEvent, error) {

	rows, err := db.getEvents.Query(workflowID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events = []core.WorkflowEvent{}

	for rows.Next() {
		var event = core.WorkflowEvent{
			WorkflowID: workflowID,
		}
		var fromState sql.NullString
		var toState string
		if err = rows.Scan(&event.ID, &fromState, &toState, &event.UserID, &event.Reason, &event.TsCreated); err != nil {
			return nil, err
		}
		if fromState.Valid {
			event.FromState = core.State(fromState.String)
		}
		event.ToState = core.State(toState)
		events = append(events, event)
	}

	return events, nil
}

func (db *WorkflowDB) GetComments(tenantID, workflowID int) ([]core.Comment, error) {

	rows, err := db.getComments.Query(workflowID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments = []core.Comment{}

	for rows.Next() {
		var comment = core.Comment{
			WorkflowID: workflowID,
		}
		var state string
		if err = rows.Scan(&comment.ID, &comment.ParentID, &comment.UserID, &state, &comment.Content, &comment.Resolved, &comment.TsCreated); err != nil {
			return nil, err
		}
		comment.State = core.State(state)
		comments = append(comments, comment)
	}

	return comments, nil
}

func (db *WorkflowDB) DeleteWorkflow(tenantID, workflowID int) error {

	tx, err := db.Begin()
	if err != nil {
		return err
	}

	// children first, approval rows before the approvals they reference
	for _, stmt := range []*sql.Stmt{db.deleteResponses, db.deleteApprovers, db.deleteApprovals, db.deleteComments, db.deleteEvents} {
		if _, err := tx.Stmt(stmt).Exec(workflowID, tenantID); err != nil {
			tx.Rollback()
			return err
		}
	}

	res, err := tx.Stmt(db.deleteWorkflow).Exec(workflowID, tenantID)
	if err != nil {
		tx.Rollback()
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if affected == 0 {
		tx.Rollback()
		return core.ErrNotFound
	}

	return tx.Commit()
}
