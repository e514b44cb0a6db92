package uid

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	if a == b || !IsValid(a) {
		t.Fatalf("bad ids %q %q", a, b)
	}
	if IsValid("not-a-uuid") {
		t.Fatal("accepted invalid id")
	}
}

func TestOwner(t *testing.T) {
	o := Owner()
	i := strings.LastIndex(o, "/")
	if !IsValid(o[i+1:]) {
		t.Fatalf("owner token %q does not end in a uuid", o)
	}
	if Owner() == o {
		t.Fatal("owner tokens repeat")
	}
}
