package fs

import "testing"

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"hello", "hello", true},
		{"hello", "hellx", false},
		{"*.txt", "a.txt", true},
		{"*.txt", "a/b.txt", false},
		{"**/*.txt", "a/b/c.txt", true},
		{"a/**", "a/b/c", true},
		{"a?c", "abc", true},
		{"a?c", "a/c", false},
		{"[a-c]at", "bat", true},
		{"[a-c]at", "dat", false},
		{"[^a-c]at", "dat", true},
		{"a/b/c", "a/b/c", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, ok := MatchGlob(c.pattern, c.name)
		if !ok {
			t.Fatalf("MatchGlob(%q, %q): unexpectedly rejected as malformed", c.pattern, c.name)
		}
		if got != c.want {
			t.Errorf("MatchGlob(%q, %q) = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}

func TestMatchGlobMalformed(t *testing.T) {
	_, ok := MatchGlob("[abc", "abc")
	if ok {
		t.Fatal("expected unterminated class to be rejected")
	}
}
