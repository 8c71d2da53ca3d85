package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestNewIDIsSortableULID(t *testing.T) {
	a := NewID()
	b := NewID()
	if _, err := ulid.ParseStrict(a); err != nil {
		t.Fatalf("parse %q: %v", a, err)
	}
	if a >= b {
		t.Fatalf("expected monotonic ids, got %q then %q", a, b)
	}
}

func TestNewTokenShape(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		tok := NewToken()
		if len(tok) != tokenLen {
			t.Fatalf("token %q has length %d, want %d", tok, len(tok), tokenLen)
		}
		seen[tok] = struct{}{}
	}
	if len(seen) != 100 {
		t.Fatalf("expected 100 distinct tokens, got %d", len(seen))
	}
}

func TestNewTokensAreNotSequential(t *testing.T) {
	const n = 50
	prev := NewToken()
	for i := 0; i < n; i++ {
		next := NewToken()
		// Adjacent monotonic ULIDs share every leading character of their
		// entropy tail. Fresh entropy almost never shares the first five.
		if next[:5] == prev[:5] {
			t.Fatalf("tokens %q and %q share a prefix; entropy looks sequential", prev, next)
		}
		prev = next
	}
}
