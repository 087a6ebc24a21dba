package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmartell/agentsched/internal/config"
)

var flagConfigForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage scheduler configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the global config file with default settings",
	Long: `Create ~/.agentsched/config.json populated with the default
settings, ready to edit. An existing file is left untouched unless
--force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GlobalPath()
		if path == "" {
			return fmt.Errorf("cannot resolve home directory for the global config path")
		}
		if err := config.WriteDefault(path, flagConfigForce); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&flagConfigForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
