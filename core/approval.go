package core

import (
	"fmt"
)

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// An Approval is one approval cycle of a workflow: a fixed approver set, a
// quorum size and the aggregated status. A workflow can accumulate several
// approval rows over its lifetime, e.g. a fresh cycle after a rejection.
type Approval struct {
	ID                int
	TenantID          int
	WorkflowID        int
	RequestedBy       int
	Approvers         []int
	RequiredApprovals int
	Status            ApprovalStatus
	TsRequested       int64
	TsCompleted       int64 // 0 while pending

	Responses []ApprovalResponse
}

// An ApprovalResponse is one approver's vote. At most one response per
// (approval, user) pair exists; the storage layer enforces that. Responses are
// immutable: changing one's mind means a new approval cycle.
type ApprovalResponse struct {
	ID         int
	ApprovalID int
	UserID     int
	Decision   Decision
	Comment    string
	TsCreated  int64
}

type ApprovalDB interface {
	// InsertApproval writes the approval row and its approver rows in one
	// transaction.
	InsertApproval(tenantID, workflowID, requestedBy int, approvers []int, requiredApprovals int) (*Approval, error)

	// GetApproval returns the approval with its approver set and responses,
	// ErrNotFound if absent or cross-tenant.
	GetApproval(tenantID, approvalID int) (*Approval, error)

	GetWorkflowApprovals(tenantID, workflowID int) ([]*Approval, error)

	// GetPendingApprovals returns pending approvals naming the user as an
	// approver which the user has not responded to yet.
	GetPendingApprovals(tenantID, userID int) ([]*Approval, error)

	// InsertResponse validates the responder, inserts the vote and recomputes
	// the aggregated status, all in one transaction. The recount re-queries the
	// response rows inside the transaction; it never trusts an in-memory
	// counter, so two concurrent votes can't both conclude the quorum is unmet.
	//
	// Resolution is asymmetric on purpose: reaching requiredApprovals approved
	// votes resolves the approval as approved, while a single rejected vote
	// resolves it as rejected immediately.
	InsertResponse(tenantID, approvalID, userID int, decision Decision, comment string) (*ApprovalResponse, error)

	Writeable() bool
}

// RequestApproval opens a new approval cycle for a workflow. The subsystem
// does not check what state the workflow sits at; that stays with the caller.
func (c *CoreDB) RequestApproval(workflowID int, approvers []int, actor Actor, requiredApprovals int) (*Approval, error) {

	if len(approvers) == 0 {
		return nil, fmt.Errorf("no approvers given")
	}
	if requiredApprovals < 1 {
		requiredApprovals = 1
	}
	if requiredApprovals > len(approvers) {
		return nil, fmt.Errorf("quorum of %d exceeds %d approvers", requiredApprovals, len(approvers))
	}

	// the workflow must exist in tenant scope
	if _, err := c.WorkflowDB.GetWorkflow(actor.TenantID, workflowID); err != nil {
		return nil, err
	}

	approval, err := c.ApprovalDB.InsertApproval(actor.TenantID, workflowID, actor.UserID, approvers, requiredApprovals)
	if err != nil {
		return nil, err
	}

	c.audit(actor, "approval.request", "approval", approval.ID, fmt.Sprintf("workflow %d, quorum %d of %d", workflowID, requiredApprovals, len(approvers)))
	return approval, nil
}

// RespondToApproval records one vote and resolves the approval if the quorum
// is reached or the vote is a rejection.
func (c *CoreDB) RespondToApproval(approvalID int, decision Decision, actor Actor, comment string) (*ApprovalResponse, error) {

	if !decision.Valid() {
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	response, err := c.ApprovalDB.InsertResponse(actor.TenantID, approvalID, actor.UserID, decision, comment)
	if err != nil {
		return nil, err
	}

	c.audit(actor, "approval.respond", "approval", approvalID, string(decision))
	return response, nil
}

// GetApproval shadows ApprovalDB.GetApproval.
func (c *CoreDB) GetApproval(approvalID int, actor Actor) (*Approval, error) {
	return c.ApprovalDB.GetApproval(actor.TenantID, approvalID)
}

// GetWorkflowApprovals shadows ApprovalDB.GetWorkflowApprovals.
func (c *CoreDB) GetWorkflowApprovals(workflowID int, actor Actor) ([]*Approval, error) {

	if _, err := c.WorkflowDB.GetWorkflow(actor.TenantID, workflowID); err != nil {
		return nil, err
	}

	return c.ApprovalDB.GetWorkflowApprovals(actor.TenantID, workflowID)
}

// GetPendingApprovals shadows ApprovalDB.GetPendingApprovals.
func (c *CoreDB) GetPendingApprovals(actor Actor) ([]*Approval, error) {
	return c.ApprovalDB.GetPendingApprovals(actor.TenantID, actor.UserID)
}
