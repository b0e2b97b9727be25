package kv

import (
	"github.com/nimbuskv/nimbus/client"
	"github.com/nimbuskv/nimbus/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	kvClient *client.Client

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform record operations against a nimbus cluster",
		PersistentPreRunE: setupKVClient,
		PersistentPostRun: teardownKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common cluster connection flags to the KV command
	util.SetupClientFlags(KeyValueCommands)

	// Default record location for all KV operations
	KeyValueCommands.PersistentFlags().String("namespace", "default", util.WrapString("Namespace of the records"))
	KeyValueCommands.PersistentFlags().String("setname", "", util.WrapString("Set of the records (optional)"))

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(appendCmd)
	KeyValueCommands.AddCommand(batchGetCmd)
	KeyValueCommands.AddCommand(scanCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient builds the cluster client from the bound flags
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration
	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	// Create the cluster client
	kvClient, err = client.NewClient(config)
	return err
}

func teardownKVClient(_ *cobra.Command, _ []string) {
	if kvClient != nil {
		kvClient.Close()
	}
}

// recordNamespace returns the namespace and set flags of the current
// invocation.
func recordNamespace() (string, string) {
	return viper.GetString("namespace"), viper.GetString("setname")
}
