package idgen

import (
	"errors"
	"testing"
	"time"
)

func TestNewAtIsMonotonic(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	prev := NewAt(at)
	for i := 0; i < 100; i++ {
		next := NewAt(at)
		if next <= prev {
			t.Fatalf("expected %s > %s", next, prev)
		}
		prev = next
	}
}

func TestParse(t *testing.T) {
	id := New()
	parsed, err := Parse(" " + id + " ")
	if err != nil || parsed != id {
		t.Fatalf("Parse(%q) = %q, %v", id, parsed, err)
	}

	for _, bad := range []string{"", "not-a-ulid", "01HZZZZZZZZZZZZZZZZZZZZZZZZ"} {
		if _, err := Parse(bad); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %q, got %v", bad, err)
		}
	}
}
