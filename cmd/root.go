package cmd

import (
	"fmt"
	"os"

	"github.com/nimbuskv/nimbus/cmd/kv"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "nimbus",
		Short: "distributed key-value database client",
		Long: fmt.Sprintf(`nimbus (v%s)

A client for the nimbus distributed key-value database, with
asynchronous multi-node command execution and pooled buffers.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of nimbus",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nimbus v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
