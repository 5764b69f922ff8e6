package auth

import (
	"testing"
)

func TestParsePermissionSet(t *testing.T) {

	set, err := ParsePermissionSet("workflow:transition  workflow:publish")
	if err != nil {
		t.Fatal(err)
	}

	if !set.Has(Transition) || !set.Has(Publish) {
		t.Fatalf("set %v misses a token", set)
	}
	if set.Has(Request) {
		t.Fatalf("set %v has a token it was not given", set)
	}

	if _, err := ParsePermissionSet("workflow:fly"); err != ErrUnknownPermission {
		t.Fatalf("got %v, want ErrUnknownPermission", err)
	}

	empty, err := ParsePermissionSet("")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("got %v, want empty set", empty)
	}
}

func TestPermissionSetString(t *testing.T) {

	var set = PermissionSet{}
	set.Add(Publish)
	set.Add(Transition)

	// lexical order, independent of insertion order
	if got := set.String(); got != "workflow:publish workflow:transition" {
		t.Fatalf("got %q", got)
	}
}
