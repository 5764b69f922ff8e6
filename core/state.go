package core

import (
	"github.com/contentflow/contentflow/auth"
)

// A State is one of the nine stations a workflow can sit at.
type State string

const (
	Research        State = "RESEARCH"
	Planning        State = "PLANNING"
	Content         State = "CONTENT"
	Creative        State = "CREATIVE"
	BrandApply      State = "BRAND_APPLY"
	ComplianceCheck State = "COMPLIANCE_CHECK"
	StateApproval   State = "APPROVAL"
	Publish         State = "PUBLISH"
	Monitor         State = "MONITOR"
)

// InitialState is where every workflow starts.
const InitialState = Research

// AllStates in pipeline order.
var AllStates = []State{Research, Planning, Content, Creative, BrandApply, ComplianceCheck, StateApproval, Publish, Monitor}

func (s State) String() string {
	return string(s)
}

func (s State) Valid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// transitions is the edge set of the workflow graph. Each legal edge maps to
// the permissions a caller must hold to take it. The table is data, not code:
// handlers and tests read it through CanTransition, TransitionPermissions and
// NextStates rather than branching on state pairs.
//
// Monitor has no terminal role; it loops back so content can be revised.
var transitions = map[State]map[State][]auth.Permission{
	Research: {
		Planning: {auth.Transition},
	},
	Planning: {
		Research: {auth.Transition},
		Content:  {auth.Transition},
	},
	Content: {
		Planning: {auth.Transition},
		Creative: {auth.Transition},
	},
	Creative: {
		Content:    {auth.Transition},
		BrandApply: {auth.Transition},
	},
	BrandApply: {
		Creative:        {auth.Transition},
		ComplianceCheck: {auth.Transition},
	},
	ComplianceCheck: {
		BrandApply:    {auth.Transition},
		StateApproval: {auth.Transition},
	},
	StateApproval: {
		ComplianceCheck: {auth.Transition},
		Publish:         {auth.Transition, auth.Publish},
	},
	Publish: {
		Monitor: {auth.Transition},
	},
	Monitor: {
		Research: {auth.Transition},
		Planning: {auth.Transition},
		Content:  {auth.Transition},
	},
}

// CanTransition reports whether (from, to) is an edge of the workflow graph.
func CanTransition(from, to State) bool {
	_, ok := transitions[from][to]
	return ok
}

// TransitionPermissions returns the permissions required for the edge (from, to),
// or ok == false if there is no such edge.
func TransitionPermissions(from, to State) ([]auth.Permission, bool) {
	perms, ok := transitions[from][to]
	return perms, ok
}

// NextStates returns the states reachable from the given state, in pipeline order.
func NextStates(from State) []State {
	var result = []State{}
	for _, to := range AllStates {
		if CanTransition(from, to) {
			result = append(result, to)
		}
	}
	return result
}

// Replay folds an ordered event sequence from the initial state and returns
// the resulting state. The stored currentState of a workflow must always equal
// the replay of its event log.
func Replay(events []WorkflowEvent) State {
	var state = InitialState
	for _, event := range events {
		state = event.ToState
	}
	return state
}
