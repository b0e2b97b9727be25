package util

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/nimbuskv/nimbus/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds common cluster connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "seeds"
	cmd.PersistentFlags().String(key, "localhost:3000", WrapString("Seed node addresses of the cluster as a comma-separated list"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The per-attempt timeout in seconds"))

	key = "max-commands"
	cmd.PersistentFlags().Int(key, common.DefaultMaxCommands, WrapString("Maximum number of commands in flight at once"))

	key = "pool-mode"
	cmd.PersistentFlags().String(key, "block", WrapString("What to do when all command slots are in use (block, reject, delay)"))

	key = "buffer-size"
	cmd.PersistentFlags().Int(key, common.DefaultBufferSize, WrapString("Initial per-command buffer size in bytes"))

	key = "conn-per-node"
	cmd.PersistentFlags().Int(key, common.DefaultConnectionsPerNode, WrapString("Idle connections kept pooled per node"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 2, WrapString("How many times to retry a failed command"))

	key = "retry-sleep"
	cmd.PersistentFlags().Int(key, 50, WrapString("Delay between retry attempts in milliseconds"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level of the client (debug, info, warn, error)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("nimbus")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (common.ClientConfig, error) {
	mode, err := common.ParsePoolMode(viper.GetString("pool-mode"))
	if err != nil {
		return common.ClientConfig{}, err
	}

	conf := common.ClientConfig{
		Seeds:              strings.Split(viper.GetString("seeds"), ","),
		MaxCommands:        viper.GetInt("max-commands"),
		PoolMode:           mode,
		BufferSize:         viper.GetInt("buffer-size"),
		ConnectionsPerNode: viper.GetInt("conn-per-node"),
		TimeoutSecond:      viper.GetInt("timeout"),
		MaxRetries:         viper.GetInt("retries"),
		SleepBetweenMs:     viper.GetInt("retry-sleep"),
		LogLevel:           viper.GetString("log-level"),
	}

	return conf, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
