package core

import (
	"testing"

	"github.com/contentflow/contentflow/auth"
)

// legalEdges is written out independently of the transition table, so a typo
// in either shows up as a test failure.
var legalEdges = [][2]State{
	{Research, Planning},
	{Planning, Research},
	{Planning, Content},
	{Content, Planning},
	{Content, Creative},
	{Creative, Content},
	{Creative, BrandApply},
	{BrandApply, Creative},
	{BrandApply, ComplianceCheck},
	{ComplianceCheck, BrandApply},
	{ComplianceCheck, StateApproval},
	{StateApproval, ComplianceCheck},
	{StateApproval, Publish},
	{Publish, Monitor},
	{Monitor, Research},
	{Monitor, Planning},
	{Monitor, Content},
}

func TestTransitionTable(t *testing.T) {

	var legal = map[[2]State]bool{}
	for _, edge := range legalEdges {
		legal[edge] = true

		if !CanTransition(edge[0], edge[1]) {
			t.Errorf("expected edge %s to %s", edge[0], edge[1])
		}
	}

	// everything not listed above must be rejected, including self-loops
	for _, from := range AllStates {
		for _, to := range AllStates {
			if legal[[2]State{from, to}] {
				continue
			}
			if CanTransition(from, to) {
				t.Errorf("unexpected edge %s to %s", from, to)
			}
			if _, ok := TransitionPermissions(from, to); ok {
				t.Errorf("unexpected permissions for %s to %s", from, to)
			}
		}
	}
}

func TestTransitionPermissions(t *testing.T) {

	for _, edge := range legalEdges {

		perms, ok := TransitionPermissions(edge[0], edge[1])
		if !ok {
			t.Fatalf("expected edge %s to %s", edge[0], edge[1])
		}

		var wantPublish = edge[0] == StateApproval && edge[1] == Publish

		var hasTransition, hasPublish bool
		for _, p := range perms {
			switch p {
			case auth.Transition:
				hasTransition = true
			case auth.Publish:
				hasPublish = true
			default:
				t.Errorf("edge %s to %s: unexpected permission %s", edge[0], edge[1], p)
			}
		}

		if !hasTransition {
			t.Errorf("edge %s to %s: missing %s", edge[0], edge[1], auth.Transition)
		}
		if hasPublish != wantPublish {
			t.Errorf("edge %s to %s: publish permission = %t, want %t", edge[0], edge[1], hasPublish, wantPublish)
		}
	}
}

func TestNextStates(t *testing.T) {

	var got = NextStates(Monitor)
	var want = []State{Research, Planning, Content}

	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if len(NextStates(Research)) != 1 {
		t.Fatalf("got %v, want just %s", NextStates(Research), Planning)
	}
}

func TestReplay(t *testing.T) {

	if got := Replay(nil); got != Research {
		t.Fatalf("empty replay: got %s, want %s", got, Research)
	}

	var events = []WorkflowEvent{
		{ToState: Research}, // creation event
		{FromState: Research, ToState: Planning},
		{FromState: Planning, ToState: Content},
		{FromState: Content, ToState: Planning},
		{FromState: Planning, ToState: Content},
		{FromState: Content, ToState: Creative},
	}

	if got := Replay(events); got != Creative {
		t.Fatalf("got %s, want %s", got, Creative)
	}
}

func TestStateValid(t *testing.T) {

	for _, s := range AllStates {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}

	if State("DRAFT").Valid() {
		t.Error("DRAFT should not be valid")
	}
	if State("").Valid() {
		t.Error("empty state should not be valid")
	}
}
