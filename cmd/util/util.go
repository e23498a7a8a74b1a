package util

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/sKV/lib/db"
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

// SetupDatabaseFlags adds the common database flags to a command
func SetupDatabaseFlags(cmd *cobra.Command) {
	key := "path"
	cmd.PersistentFlags().String(key, "./skv-data", WrapString("Directory of the on-disk store"))

	key = "maps"
	cmd.PersistentFlags().String(key, "default", WrapString("Keyspaces to open, as a comma-separated list of names. Missing keyspaces are created on first open"))

	key = "mode"
	cmd.PersistentFlags().String(key, "read-write", WrapString("Operating mode (read-write, read-only, read-replica)"))

	key = "pool-workers"
	cmd.PersistentFlags().Int(key, 0, WrapString("Number of blocking-call workers (0 = number of CPUs)"))

	key = "pool-queue-size"
	cmd.PersistentFlags().Int(key, 0, WrapString("Dispatch queue capacity (0 = 4x workers)"))

	key = "cache-size"
	cmd.PersistentFlags().Int(key, 0, WrapString("Block cache size in MB (0 = 64)"))

	key = "memtable-size"
	cmd.PersistentFlags().Int(key, 0, WrapString("Memtable size in MB (0 = 32)"))

	key = "sync-writes"
	cmd.PersistentFlags().Bool(key, false, WrapString("Fsync every write (durable but slow)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("skv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetDatabaseConfig reads the database configuration from viper
func GetDatabaseConfig() *db.Config {
	return &db.Config{
		Path:           viper.GetString("path"),
		Maps:           strings.Split(viper.GetString("maps"), ","),
		Mode:           db.Mode(viper.GetString("mode")),
		PoolWorkers:    viper.GetInt("pool-workers"),
		PoolQueueSize:  viper.GetInt("pool-queue-size"),
		CacheSizeMB:    viper.GetInt("cache-size"),
		MemTableSizeMB: viper.GetInt("memtable-size"),
		SyncWrites:     viper.GetBool("sync-writes"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
