package sqldb

import (
	"errors"
	"testing"

	"github.com/contentflow/contentflow/auth"
	"github.com/contentflow/contentflow/core"
)

// TestWorkflowScenario runs one content item through the whole pipeline:
// creation, a few legal transitions, an illegal jump, the publish gate, a
// two-of-two approval cycle and finally publishing.
func TestWorkflowScenario(t *testing.T) {

	var db = newTestDB(t)
	var alice = core.Actor{TenantID: 1, UserID: 10}
	var bob = core.Actor{TenantID: 1, UserID: 11}
	var carol = core.Actor{TenantID: 1, UserID: 12}

	workflow, err := db.CreateWorkflow(500, alice)
	if err != nil {
		t.Fatal(err)
	}
	if workflow.State != core.Research {
		t.Fatalf("got state %s, want %s", workflow.State, core.Research)
	}

	// jumping over states must not work
	if err := db.TransitionState(workflow.ID, core.StateApproval, alice, ""); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}

	drive(t, db, workflow.ID, alice, core.Planning, core.Content, core.Creative, core.BrandApply, core.ComplianceCheck, core.StateApproval)

	// the publish gate requires an approved approval
	if err := db.TransitionState(workflow.ID, core.Publish, alice, ""); !errors.Is(err, core.ErrApprovalRequired) {
		t.Fatalf("got %v, want ErrApprovalRequired", err)
	}

	approval, err := db.RequestApproval(workflow.ID, []int{bob.UserID, carol.UserID}, alice, 2)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.RespondToApproval(approval.ID, core.DecisionApproved, bob, "fine by me"); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetApproval(approval.ID, alice)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != core.StatusPending {
		t.Fatalf("got status %s after one of two votes, want %s", got.Status, core.StatusPending)
	}

	// still one vote short of the quorum
	if err := db.TransitionState(workflow.ID, core.Publish, alice, ""); !errors.Is(err, core.ErrApprovalRequired) {
		t.Fatalf("got %v, want ErrApprovalRequired", err)
	}

	if _, err := db.RespondToApproval(approval.ID, core.DecisionApproved, carol, ""); err != nil {
		t.Fatal(err)
	}

	got, err = db.GetApproval(approval.ID, alice)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != core.StatusApproved {
		t.Fatalf("got status %s, want %s", got.Status, core.StatusApproved)
	}
	if got.TsCompleted == 0 {
		t.Fatal("completed approval has no completion timestamp")
	}

	if err := db.TransitionState(workflow.ID, core.Publish, alice, "ship it"); err != nil {
		t.Fatal(err)
	}

	workflow, err = db.GetWorkflow(workflow.ID, alice)
	if err != nil {
		t.Fatal(err)
	}
	if workflow.State != core.Publish {
		t.Fatalf("got state %s, want %s", workflow.State, core.Publish)
	}

	// creation plus seven transitions
	if len(workflow.Events) != 8 {
		t.Fatalf("got %d events, want 8", len(workflow.Events))
	}
	if workflow.Events[0].FromState != "" || workflow.Events[0].ToState != core.Research {
		t.Fatalf("unexpected creation event %+v", workflow.Events[0])
	}
	if last := workflow.Events[len(workflow.Events)-1]; last.Reason != "ship it" {
		t.Fatalf("got reason %q, want %q", last.Reason, "ship it")
	}

	// the event log replays to the stored state
	if replayed := core.Replay(workflow.Events); replayed != workflow.State {
		t.Fatalf("replay yields %s, state column says %s", replayed, workflow.State)
	}
}

func TestTransitionPermissionChecks(t *testing.T) {

	var db = newTestDB(t)
	var actor = core.Actor{TenantID: 1, UserID: 10}

	workflow, err := db.CreateWorkflow(500, actor)
	if err != nil {
		t.Fatal(err)
	}

	db.Perms = grantSet{}
	if err := db.TransitionState(workflow.ID, core.Planning, actor, ""); !errors.Is(err, core.ErrInsufficientPermissions) {
		t.Fatalf("got %v, want ErrInsufficientPermissions", err)
	}

	db.Perms = grantSet{auth.Transition: true}
	drive(t, db, workflow.ID, actor, core.Planning, core.Content, core.Creative, core.BrandApply, core.ComplianceCheck, core.StateApproval)

	// publishing needs both tokens, transition alone is not enough
	if err := db.TransitionState(workflow.ID, core.Publish, actor, ""); !errors.Is(err, core.ErrInsufficientPermissions) {
		t.Fatalf("got %v, want ErrInsufficientPermissions", err)
	}
}

func TestTenantIsolation(t *testing.T) {

	var db = newTestDB(t)
	var alice = core.Actor{TenantID: 1, UserID: 10}
	var mallory = core.Actor{TenantID: 2, UserID: 20}

	workflow, err := db.CreateWorkflow(500, alice)
	if err != nil {
		t.Fatal(err)
	}

	// from another tenant, the workflow behaves as if it did not exist
	if _, err := db.GetWorkflow(workflow.ID, mallory); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if err := db.TransitionState(workflow.ID, core.Planning, mallory, ""); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := db.AddComment(workflow.ID, "hello", mallory, 0); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := db.GetWorkflowHistory(workflow.ID, mallory); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := db.RequestApproval(workflow.ID, []int{21}, mallory, 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	others, err := db.GetAllWorkflows(mallory, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 0 {
		t.Fatalf("got %d workflows in a foreign tenant, want 0", len(others))
	}
}

// TestConcurrentTransitionGuard exercises the compare-and-swap semantics of
// UpdateState: a caller holding a stale state loses.
func TestConcurrentTransitionGuard(t *testing.T) {

	var db = newTestDB(t)
	var actor = core.Actor{TenantID: 1, UserID: 10}

	workflow, err := db.CreateWorkflow(500, actor)
	if err != nil {
		t.Fatal(err)
	}

	drive(t, db, workflow.ID, actor, core.Planning)

	// simulates the second of two racing transitions, which read RESEARCH
	// before the first one won
	err = db.WorkflowDB.UpdateState(actor.TenantID, workflow.ID, core.Research, core.Planning, actor.UserID, "", false)
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}

	// the losing attempt must leave no trace
	workflow, err = db.GetWorkflow(workflow.ID, actor)
	if err != nil {
		t.Fatal(err)
	}
	if workflow.State != core.Planning {
		t.Fatalf("got state %s, want %s", workflow.State, core.Planning)
	}
	if len(workflow.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(workflow.Events))
	}
}

func TestComments(t *testing.T) {

	var db = newTestDB(t)
	var actor = core.Actor{TenantID: 1, UserID: 10}

	workflow, err := db.CreateWorkflow(500, actor)
	if err != nil {
		t.Fatal(err)
	}

	first, err := db.AddComment(workflow.ID, "needs sources", actor, 0)
	if err != nil {
		t.Fatal(err)
	}
	if first.State != core.Research {
		t.Fatalf("got state %s, want %s", first.State, core.Research)
	}

	drive(t, db, workflow.ID, actor, core.Planning)

	// comments carry the state they were written in, not the current one
	reply, err := db.AddComment(workflow.ID, "done", actor, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reply.State != core.Planning {
		t.Fatalf("got state %s, want %s", reply.State, core.Planning)
	}
	if reply.ParentID != first.ID {
		t.Fatalf("got parent %d, want %d", reply.ParentID, first.ID)
	}

	if err := db.ResolveComment(first.ID, true, actor); err != nil {
		t.Fatal(err)
	}

	workflow, err = db.GetWorkflow(workflow.ID, actor)
	if err != nil {
		t.Fatal(err)
	}
	if len(workflow.Comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(workflow.Comments))
	}
	if !workflow.Comments[0].Resolved {
		t.Fatal("first comment should be resolved")
	}
	if workflow.Comments[1].Resolved {
		t.Fatal("second comment should not be resolved")
	}

	if err := db.ResolveComment(9999, true, actor); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDuplicateContent(t *testing.T) {

	var db = newTestDB(t)
	var actor = core.Actor{TenantID: 1, UserID: 10}

	if _, err := db.CreateWorkflow(500, actor); err != nil {
		t.Fatal(err)
	}

	// one workflow per content item and tenant
	if _, err := db.CreateWorkflow(500, actor); err == nil {
		t.Fatal("expected an error for the second workflow on the same content")
	}

	// the same content id in another tenant is fine
	if _, err := db.CreateWorkflow(500, core.Actor{TenantID: 2, UserID: 20}); err != nil {
		t.Fatal(err)
	}

	if count, err := db.CountWorkflows(actor); err != nil || count != 1 {
		t.Fatalf("got count %d (%v), want 1", count, err)
	}
}

func TestDeleteWorkflow(t *testing.T) {

	var db = newTestDB(t)
	var actor = core.Actor{TenantID: 1, UserID: 10}

	workflow, err := db.CreateWorkflow(500, actor)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddComment(workflow.ID, "note", actor, 0); err != nil {
		t.Fatal(err)
	}
	approval, err := db.RequestApproval(workflow.ID, []int{11}, actor, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.RespondToApproval(approval.ID, core.DecisionApproved, core.Actor{TenantID: 1, UserID: 11}, ""); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteWorkflow(workflow.ID, actor); err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetWorkflow(workflow.ID, actor); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := db.GetApproval(approval.ID, actor); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	if err := db.DeleteWorkflow(workflow.ID, actor); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestAuditTrail(t *testing.T) {

	var db = newTestDB(t)
	var actor = core.Actor{TenantID: 1, UserID: 10}

	workflow, err := db.CreateWorkflow(500, actor)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.TransitionState(workflow.ID, core.Planning, actor, "kickoff"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddComment(workflow.ID, "note", actor, 0); err != nil {
		t.Fatal(err)
	}

	auditDB := db.Audit.(*AuditDB)
	entries, err := auditDB.GetRecentEntries(actor.TenantID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2", len(entries))
	}

	// newest first
	if entries[0].Action != "workflow.comment" {
		t.Fatalf("got action %s, want workflow.comment", entries[0].Action)
	}
	if entries[1].Action != "workflow.transition" {
		t.Fatalf("got action %s, want workflow.transition", entries[1].Action)
	}
	if entries[1].ResourceID != workflow.ID || entries[1].UserID != actor.UserID {
		t.Fatalf("unexpected audit entry %+v", entries[1])
	}

	foreign, err := auditDB.GetRecentEntries(2, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(foreign) != 0 {
		t.Fatalf("got %d audit entries in a foreign tenant, want 0", len(foreign))
	}
}
