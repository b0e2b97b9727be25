package common

import (
	"strings"
	"testing"
)

// TestNormalizeDefaults verifies unset fields receive their defaults.
func TestNormalizeDefaults(t *testing.T) {
	c := ClientConfig{}.Normalize()

	if c.MaxCommands != DefaultMaxCommands {
		t.Errorf("Expected %d max commands, got %d", DefaultMaxCommands, c.MaxCommands)
	}
	if c.PoolMode != PoolModeBlock {
		t.Errorf("Expected block pool mode, got %s", c.PoolMode)
	}
	if c.BufferSize != DefaultBufferSize {
		t.Errorf("Expected %d buffer size, got %d", DefaultBufferSize, c.BufferSize)
	}
	if c.TimeoutSecond != DefaultTimeoutSecond {
		t.Errorf("Expected %d second timeout, got %d", DefaultTimeoutSecond, c.TimeoutSecond)
	}
	if c.LogLevel != "info" {
		t.Errorf("Expected info log level, got %s", c.LogLevel)
	}
}

// TestNormalizeKeepsExplicitValues verifies set fields survive.
func TestNormalizeKeepsExplicitValues(t *testing.T) {
	c := ClientConfig{
		MaxCommands: 7,
		PoolMode:    PoolModeDelay,
		BufferSize:  64,
	}.Normalize()

	if c.MaxCommands != 7 || c.PoolMode != PoolModeDelay || c.BufferSize != 64 {
		t.Errorf("Explicit values were overwritten: %+v", c)
	}
}

// TestParsePoolMode verifies the accepted spellings and the error case.
func TestParsePoolMode(t *testing.T) {
	cases := map[string]PoolMode{
		"block":  PoolModeBlock,
		"REJECT": PoolModeReject,
		"Delay":  PoolModeDelay,
	}
	for in, want := range cases {
		got, err := ParsePoolMode(in)
		if err != nil || got != want {
			t.Errorf("ParsePoolMode(%q) = %v, %v; expected %v", in, got, err, want)
		}
	}

	if _, err := ParsePoolMode("banana"); err == nil {
		t.Errorf("Expected an error for an unknown pool mode")
	}
}

// TestConfigString verifies the pretty printer names the key settings.
func TestConfigString(t *testing.T) {
	c := ClientConfig{Seeds: []string{"a:1"}}.Normalize()
	s := c.String()

	for _, want := range []string{"a:1", "block"} {
		if !strings.Contains(s, want) {
			t.Errorf("Config string misses %q:\n%s", want, s)
		}
	}
}
