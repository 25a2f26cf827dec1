package idgen

import (
	"strings"
	"testing"
)

func TestNanoID_LengthAndAlphabet(t *testing.T) {
	for _, length := range []int{8, 12, 24} {
		id := NanoID(length)()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
		for _, c := range id {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
				t.Fatalf("NanoID: unexpected character %q in %q", c, id)
			}
		}
	}
}

func TestUUIDv7_Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if len(id) != 36 || strings.Count(id, "-") != 4 {
			t.Fatalf("UUIDv7: bad format %q", id)
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("root_", NanoID(6))()
	if !strings.HasPrefix(id, "root_") || len(id) != 11 {
		t.Errorf("Prefixed: got %q", id)
	}
}

func TestGeneratedRootsAreValid(t *testing.T) {
	if err := ValidRoot(Root()); err != nil {
		t.Errorf("generated root: %v", err)
	}
}

func TestValidRoot(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"page-1", true},
		{"a.b_c", true},
		{"", false},
		{"a/b", false},
		{"a b", false},
		{strings.Repeat("x", 129), false},
	}
	for _, tt := range tests {
		if err := ValidRoot(tt.in); (err == nil) != tt.ok {
			t.Errorf("ValidRoot(%q): got %v, want ok=%v", tt.in, err, tt.ok)
		}
	}
}

func TestParse(t *testing.T) {
	id := UUIDv7()()
	got, err := Parse(strings.ToUpper(id))
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Errorf("Parse: got %q, want %q", got, id)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("Parse: expected error")
	}
}
