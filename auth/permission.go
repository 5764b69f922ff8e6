package auth

import (
	"sort"
	"strings"
)

// A Permission is a capability token.
type Permission string

const (
	Transition Permission = "workflow:transition" // move a workflow along any regular edge
	Publish    Permission = "workflow:publish"    // required in addition to Transition for the publish edge
	Request    Permission = "workflow:request-approval"
)

func (p Permission) String() string {
	return string(p)
}

func (p Permission) Valid() bool {
	switch p {
	case Transition:
		return true
	case Publish:
		return true
	case Request:
		return true
	default:
		return false
	}
}

// A PermissionSet is an unordered set of capability tokens.
type PermissionSet map[Permission]struct{}

func (s PermissionSet) Add(p Permission) {
	s[p] = struct{}{}
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Slice returns the tokens in lexical order.
func (s PermissionSet) Slice() []Permission {
	var result = make([]Permission, 0, len(s))
	for p := range s {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (s PermissionSet) String() string {
	var tokens = []string{}
	for _, p := range s.Slice() {
		tokens = append(tokens, string(p))
	}
	return strings.Join(tokens, " ")
}

// ParsePermissionSet parses a whitespace-separated list of tokens.
// Unknown tokens are rejected, so a typo in a grant can't silently widen or narrow access.
func ParsePermissionSet(str string) (PermissionSet, error) {
	var set = PermissionSet{}
	for _, field := range strings.Fields(str) {
		var p = Permission(field)
		if !p.Valid() {
			return nil, ErrUnknownPermission
		}
		set.Add(p)
	}
	return set, nil
}
