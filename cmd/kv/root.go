package kv

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/lib/db"
)

var (
	database *db.Database

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value operations on a local store",
		PersistentPreRunE:  setupDatabase,
		PersistentPostRunE: teardownDatabase,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common database flags to the KV command
	util.SetupDatabaseFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(countCmd)
	KeyValueCommands.AddCommand(listCmd)
	KeyValueCommands.AddCommand(watchCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupDatabase opens the local store with the configured keyspaces
func setupDatabase(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := util.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	var err error
	database, err = db.Open(util.GetDatabaseConfig())
	return err
}

// teardownDatabase closes the store after the command ran
func teardownDatabase(_ *cobra.Command, _ []string) error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// targetMap resolves the keyspace a command operates on: the --map flag if
// given, otherwise the first configured keyspace.
func targetMap(cmd *cobra.Command) (*db.Map, error) {
	name, _ := cmd.Flags().GetString("map")
	if name == "" {
		name = database.Names()[0]
	}
	return database.Get(name)
}
