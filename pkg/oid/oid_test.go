package oid

import "testing"

func TestNew_Format(t *testing.T) {
	id := New()
	if len(id) != 24 {
		t.Fatalf("expected 24 chars, got %d", len(id))
	}
	if !id.Valid() {
		t.Errorf("generated id %q is not valid", id)
	}
}

func TestNew_Unique(t *testing.T) {
	seen := map[ID]bool{}
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"507f1f77bcf86cd799439011", true},
		{"507F1F77BCF86CD799439011", true},
		{"507f1f77bcf86cd79943901", false},   // 23 chars
		{"507f1f77bcf86cd7994390111", false}, // 25 chars
		{"507f1f77bcf86cd79943901g", false},  // non-hex
		{"", false},
	}
	for _, tc := range cases {
		_, err := Parse(tc.in)
		if tc.ok && err != nil {
			t.Errorf("Parse(%q): unexpected error %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("Parse(%q): expected error", tc.in)
		}
	}
}
