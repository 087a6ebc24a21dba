package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task and everything that depends on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		cli, err := daemonClient()
		if err != nil {
			return err
		}
		task, err := cli.Cancel(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Task %d is now %s\n", task.ID, task.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
