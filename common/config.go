package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Context Pool Mode
// --------------------------------------------------------------------------

// PoolMode selects the discipline of the async context pool: what happens
// when a new command is issued while all contexts are checked out.
type PoolMode string

const (
	// PoolModeBlock suspends the caller until a context becomes free
	PoolModeBlock PoolMode = "block"
	// PoolModeReject fails the command immediately with a rejection error
	PoolModeReject PoolMode = "reject"
	// PoolModeDelay queues the command and resumes it on the next release
	PoolModeDelay PoolMode = "delay"
)

// ParsePoolMode converts a string into a PoolMode.
func ParsePoolMode(s string) (PoolMode, error) {
	switch strings.ToLower(s) {
	case "block":
		return PoolModeBlock, nil
	case "reject":
		return PoolModeReject, nil
	case "delay":
		return PoolModeDelay, nil
	default:
		return "", fmt.Errorf("invalid pool mode %q. must be one of block, reject, delay", s)
	}
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all construction-time parameters of a client. The
// async pool settings are read once when the client is built; changing
// them requires rebuilding the client.
type ClientConfig struct {
	// Seed node addresses used to populate the node registry
	Seeds []string

	// Async execution settings
	MaxCommands int      // Maximum concurrent commands (context pool size)
	PoolMode    PoolMode // Pool discipline when all contexts are in use
	BufferSize  int      // Initial per-command buffer size in bytes

	// Connection settings
	ConnectionsPerNode int // Idle connections kept pooled per node
	TimeoutSecond      int // Per-attempt socket deadline

	// Retry settings
	MaxRetries     int // Retry attempts after the first failure
	SleepBetweenMs int // Delay between attempts in milliseconds

	// Logging configuration
	LogLevel string
}

// Defaults applied by Normalize.
const (
	DefaultMaxCommands        = 128
	DefaultBufferSize         = 8 * 1024
	DefaultConnectionsPerNode = 1
	DefaultTimeoutSecond      = 10
)

// Normalize fills unset fields with their defaults and returns the config.
func (c ClientConfig) Normalize() ClientConfig {
	if c.MaxCommands <= 0 {
		c.MaxCommands = DefaultMaxCommands
	}
	if c.PoolMode == "" {
		c.PoolMode = PoolModeBlock
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ConnectionsPerNode <= 0 {
		c.ConnectionsPerNode = DefaultConnectionsPerNode
	}
	if c.TimeoutSecond <= 0 {
		c.TimeoutSecond = DefaultTimeoutSecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// String returns a formatted string representation of the configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Async Execution")
	addField("Max Commands", strconv.Itoa(c.MaxCommands))
	addField("Pool Mode", string(c.PoolMode))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.BufferSize))

	addSection("Connections")
	addField("Per Node", strconv.Itoa(c.ConnectionsPerNode))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Retries")
	addField("Max Retries", strconv.Itoa(c.MaxRetries))
	addField("Sleep Between", fmt.Sprintf("%d ms", c.SleepBetweenMs))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Seed Nodes")
	for i, seed := range c.Seeds {
		addField(strconv.Itoa(i), seed)
	}

	return sb.String()
}
