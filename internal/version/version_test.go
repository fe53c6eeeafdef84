package version

import (
	"regexp"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	v := Get()
	if !regexp.MustCompile(`^\d+\.\d+\.\d+`).MatchString(v) {
		t.Errorf("Get() = %q, want a semantic version", v)
	}
	if v != strings.TrimSpace(v) {
		t.Errorf("Get() = %q is not trimmed", v)
	}
}

func TestString(t *testing.T) {
	if s := String(); !strings.HasPrefix(s, "kdb version "+Get()) {
		t.Errorf("String() = %q", s)
	}
}
