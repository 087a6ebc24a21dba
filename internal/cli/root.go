package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmartell/agentsched/internal/client"
	"github.com/pmartell/agentsched/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "agentsched",
	Short: "Dependency-aware scheduler for coding agent sessions",
	Long: `agentsched runs coding agent tasks as a dependency graph.
Tasks declare which other tasks they depend on; the scheduler starts each
one as soon as its dependencies complete, bounded by a global concurrency
limit, and records enough state to resume interrupted sessions after a
crash or restart.`,
	SilenceUsage: true,
}

var flagAddr string

// ExecuteContext runs the root command.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "",
		"daemon address (default from config, e.g. http://127.0.0.1:39512)")
}

// daemonClient builds an HTTP client for the configured daemon address.
func daemonClient() (*client.Client, error) {
	if flagAddr != "" {
		return client.New(flagAddr), nil
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return client.New(cfg.BaseURL()), nil
}
