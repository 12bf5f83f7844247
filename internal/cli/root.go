// Package cli implements the pointmap CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360/pointmap/config"
	"github.com/c360/pointmap/memory"
)

var (
	configPath string
	dbPath     string
	cfg        *config.Config
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "pointmap",
	Short: "Normalize BMS point names into EnOS identifiers",
	Long: "pointmap maps free-form Building Management System point names " +
		"(CH-SYS-1.CWP.VSD.Hz) to schema-checked EnOS identifiers " +
		"(PUMP_raw_frequency) using a learned mapping memory with a " +
		"guaranteed-valid fallback ladder.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.NewLoader().Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.MemoryPath = dbPath
		}
		slog.SetDefault(setupLogger(cfg.Log.Level, cfg.Log.Format))
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Mapping memory database path (overrides config)")
}

func openStore() (*memory.Store, error) {
	return memory.NewStore(cfg.MemoryPath,
		memory.WithExampleCap(cfg.MemoryExampleCap),
		memory.WithLogger(slog.Default()))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}
