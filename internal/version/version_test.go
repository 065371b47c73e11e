package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	origCommit := Commit
	defer func() { Commit = origCommit }()

	Commit = "unknown"
	if got := Info(); got != Version {
		t.Errorf("Info() = %q, want %q", got, Version)
	}

	Commit = "0123456789abcdef"
	if got := Info(); got != Version+" (0123456)" {
		t.Errorf("Info() = %q", got)
	}
}

func TestFull(t *testing.T) {
	if !strings.Contains(Full(), Version) {
		t.Errorf("Full() missing version: %q", Full())
	}
}
