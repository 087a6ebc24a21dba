package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pmartell/agentsched/internal/server"
)

var flagShowSession string

var showCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show one task, prompt included",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := daemonClient()
		if err != nil {
			return err
		}

		var task *server.TaskView
		switch {
		case flagShowSession != "":
			task, err = cli.ShowBySession(cmd.Context(), flagShowSession)
		case len(args) == 1:
			id, parseErr := strconv.ParseInt(args[0], 10, 64)
			if parseErr != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			task, err = cli.Show(cmd.Context(), id)
		default:
			return fmt.Errorf("a task id or --session is required")
		}
		if err != nil {
			return err
		}

		fmt.Print(renderTaskDetail(task))
		return nil
	},
}

func init() {
	showCmd.Flags().StringVarP(&flagShowSession, "session", "s", "", "look up by session id instead of task id")
	rootCmd.AddCommand(showCmd)
}
