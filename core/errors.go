package core

import (
	"errors"
)

// Every mutation fails with one of these, so callers can tell "you lack
// permission" from "this edge is not legal" from "approval still pending".
// All of them are deterministic validation failures; retrying won't help.
var (
	// ErrNotFound: absent in this tenant. Cross-tenant rows look absent too.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition: the edge is not in the transition table.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInsufficientPermissions: the caller misses a permission the edge requires.
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	// ErrApprovalRequired: publish attempted without an approved approval.
	ErrApprovalRequired = errors.New("approval required")
	// ErrAlreadyResponded: duplicate vote on one approval.
	ErrAlreadyResponded = errors.New("already responded")
	// ErrNotAnApprover: the responder is not in the named approver set.
	ErrNotAnApprover = errors.New("not an approver")
	// ErrApprovalResolved: vote on an approval that is no longer pending.
	ErrApprovalResolved = errors.New("approval already resolved")
)
