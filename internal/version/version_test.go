package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := Version
	Version = "1.2.3"
	defer func() { Version = old }()

	s := String()
	if !strings.HasPrefix(s, "irc-ingest 1.2.3 (") {
		t.Errorf("String() = %q", s)
	}
	if got := Get().Version; got != "1.2.3" {
		t.Errorf("Get().Version = %q, want 1.2.3", got)
	}
}
