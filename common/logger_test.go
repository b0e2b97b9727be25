package common

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

// TestLoggerLevelFiltering verifies messages below the configured level
// are suppressed and emitted lines carry the level and package name.
func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stdout)

	l := CreateLogger("wiretap")
	l.SetLevel(logger.WARNING)

	l.Infof("below threshold %d", 1)
	l.Warningf("at threshold %d", 2)
	l.Errorf("above threshold %d", 3)

	out := buf.String()
	if strings.Contains(out, "below threshold") {
		t.Errorf("Suppressed level leaked into the output: %q", out)
	}
	for _, want := range []string{"WARN", "at threshold 2", "ERROR", "above threshold 3", "wiretap"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q: %q", want, out)
		}
	}
}

// TestParseLogLevel covers the accepted spellings and the short warn alias.
func TestParseLogLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug": logger.DEBUG,
		"INFO":  logger.INFO,
		"warn":  logger.WARNING,
		"Error": logger.ERROR,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, expected %v", in, got, want)
		}
	}
}
