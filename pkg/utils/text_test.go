package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("Cien años de soledad", 8); got != "Cien año..." {
		t.Errorf("multibyte: got %s", got)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"  The   Hobbit ": "the hobbit",
		"DUNE":            "dune",
		"":                "",
		"a\tb\nc":         "a b c",
	}
	for in, want := range tests {
		if got := NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinNonEmpty(t *testing.T) {
	if got := JoinNonEmpty([]string{"a", " ", "", "b "}, ", "); got != "a, b" {
		t.Errorf("got %q", got)
	}
	if got := JoinNonEmpty(nil, ", "); got != "" {
		t.Errorf("nil: got %q", got)
	}
}
