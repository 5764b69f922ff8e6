package core

import (
	"fmt"
)

// A Workflow is the approval pipeline instance bound to one content item.
// It is owned by exactly one tenant and mutated only through validated transitions.
type Workflow struct {
	ID        int
	TenantID  int
	ContentID int
	State     State
	TsCreated int64
	TsChanged int64

	// populated by CoreDB.GetWorkflow only
	Events    []WorkflowEvent
	Comments  []Comment
	Approvals []*Approval
}

// A WorkflowEvent records one transition. Events are append-only and immutable;
// replaying them from the initial state reconstructs Workflow.State.
type WorkflowEvent struct {
	ID         int
	WorkflowID int
	FromState  State // empty for the creation event
	ToState    State
	UserID     int
	Reason     string
	TsCreated  int64
}

// A Comment belongs to a workflow and carries the state it was written in.
// ParentID is 0 for top-level comments. Only the Resolved flag is mutable.
type Comment struct {
	ID         int
	WorkflowID int
	ParentID   int
	UserID     int
	State      State
	Content    string
	Resolved   bool
	TsCreated  int64
}

type WorkflowDB interface {
	// InsertWorkflow writes the workflow row at the initial state and its
	// creation event in one transaction.
	InsertWorkflow(tenantID, contentID, userID int) (*Workflow, error)

	// GetWorkflow returns the bare row, ErrNotFound if absent or cross-tenant.
	GetWorkflow(tenantID, workflowID int) (*Workflow, error)

	GetAllWorkflows(tenantID int, limit, offset int) ([]*Workflow, error)

	CountWorkflows(tenantID int) (int, error)

	// UpdateState moves the workflow from exactly `from` to `to` and appends
	// the event, all in one transaction. If requireApproved is set, the
	// transaction also requires an approved approval row for the workflow
	// (ErrApprovalRequired otherwise). If the row is no longer at `from`,
	// a concurrent transition won and UpdateState fails with ErrInvalidTransition.
	UpdateState(tenantID, workflowID int, from, to State, userID int, reason string, requireApproved bool) error

	// InsertComment tags the comment with the workflow's current state,
	// read within the same transaction as the insert.
	InsertComment(tenantID, workflowID, parentID, userID int, content string) (*Comment, error)

	SetCommentResolved(tenantID, commentID int, resolved bool) error

	GetEvents(tenantID, workflowID int) ([]WorkflowEvent, error)
	GetComments(tenantID, workflowID int) ([]Comment, error)

	// DeleteWorkflow removes the workflow and all its children. Used by
	// cascading content deletion only.
	DeleteWorkflow(tenantID, workflowID int) error

	Writeable() bool
}

// CreateWorkflow inserts a workflow at the initial state, with one creation
// event (FromState empty). There is no audit record beyond the event itself.
func (c *CoreDB) CreateWorkflow(contentID int, actor Actor) (*Workflow, error) {
	return c.WorkflowDB.InsertWorkflow(actor.TenantID, contentID, actor.UserID)
}

// TransitionState moves a workflow along one edge of the transition table.
// The edge lookup and the permission checks happen up front; the state write,
// the event append and (for the publish edge) the approval-quorum check run in
// one transaction in the store, so a stale read can't slip through.
func (c *CoreDB) TransitionState(workflowID int, to State, actor Actor, reason string) error {

	workflow, err := c.WorkflowDB.GetWorkflow(actor.TenantID, workflowID)
	if err != nil {
		return err
	}

	perms, ok := TransitionPermissions(workflow.State, to)
	if !ok {
		return fmt.Errorf("%s to %s: %w", workflow.State, to, ErrInvalidTransition)
	}

	for _, perm := range perms {
		has, err := c.Perms.HasPermission(actor.UserID, actor.TenantID, perm)
		if err != nil {
			return err
		}
		if !has {
			return fmt.Errorf("%s: %w", perm, ErrInsufficientPermissions)
		}
	}

	if err := c.WorkflowDB.UpdateState(actor.TenantID, workflowID, workflow.State, to, actor.UserID, reason, to == Publish); err != nil {
		return err
	}

	c.audit(actor, "workflow.transition", "workflow", workflowID, fmt.Sprintf("%s to %s", workflow.State, to))
	return nil
}

// AddComment adds a comment to a workflow. The comment is tagged with the
// workflow's current state at write time. Commenting requires no transition
// permission; restricting who may comment is up to the permission oracle of
// the embedding application.
func (c *CoreDB) AddComment(workflowID int, content string, actor Actor, parentID int) (*Comment, error) {

	comment, err := c.WorkflowDB.InsertComment(actor.TenantID, workflowID, parentID, actor.UserID, content)
	if err != nil {
		return nil, err
	}

	c.audit(actor, "workflow.comment", "workflow", workflowID, fmt.Sprintf("comment %d in state %s", comment.ID, comment.State))
	return comment, nil
}

// ResolveComment toggles the resolved flag of a comment.
func (c *CoreDB) ResolveComment(commentID int, resolved bool, actor Actor) error {

	if err := c.WorkflowDB.SetCommentResolved(actor.TenantID, commentID, resolved); err != nil {
		return err
	}

	c.audit(actor, "workflow.comment.resolve", "comment", commentID, fmt.Sprintf("resolved=%t", resolved))
	return nil
}

// GetWorkflow assembles the full aggregate: state, event history and comments
// ordered by time ascending, and all approvals with their nested responses.
func (c *CoreDB) GetWorkflow(workflowID int, actor Actor) (*Workflow, error) {

	workflow, err := c.WorkflowDB.GetWorkflow(actor.TenantID, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Events, err = c.WorkflowDB.GetEvents(actor.TenantID, workflowID); err != nil {
		return nil, err
	}

	if workflow.Comments, err = c.WorkflowDB.GetComments(actor.TenantID, workflowID); err != nil {
		return nil, err
	}

	if workflow.Approvals, err = c.ApprovalDB.GetWorkflowApprovals(actor.TenantID, workflowID); err != nil {
		return nil, err
	}

	return workflow, nil
}

// GetWorkflowHistory returns the event list only, for lightweight audit views.
func (c *CoreDB) GetWorkflowHistory(workflowID int, actor Actor) ([]WorkflowEvent, error) {

	// GetWorkflow first, so an absent or cross-tenant id fails with ErrNotFound
	// instead of returning an empty history.
	if _, err := c.WorkflowDB.GetWorkflow(actor.TenantID, workflowID); err != nil {
		return nil, err
	}

	return c.WorkflowDB.GetEvents(actor.TenantID, workflowID)
}

// GetAllWorkflows shadows WorkflowDB.GetAllWorkflows.
func (c *CoreDB) GetAllWorkflows(actor Actor, limit, offset int) ([]*Workflow, error) {
	return c.WorkflowDB.GetAllWorkflows(actor.TenantID, limit, offset)
}

// CountWorkflows shadows WorkflowDB.CountWorkflows.
func (c *CoreDB) CountWorkflows(actor Actor) (int, error) {
	return c.WorkflowDB.CountWorkflows(actor.TenantID)
}

// DeleteWorkflow removes a workflow and everything attached to it.
func (c *CoreDB) DeleteWorkflow(workflowID int, actor Actor) error {

	if err := c.WorkflowDB.DeleteWorkflow(actor.TenantID, workflowID); err != nil {
		return err
	}

	c.audit(actor, "workflow.delete", "workflow", workflowID, "")
	return nil
}
