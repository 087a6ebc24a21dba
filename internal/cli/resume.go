package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var flagResumeSession string

var resumeCmd = &cobra.Command{
	Use:   "resume [task-id]",
	Short: "Re-admit an interrupted task with its prior session",
	Long: `Resume a task whose run was interrupted (by a crash, restart, or
shutdown). The agent is restarted with the session it had before, so it
keeps its conversation history. Only interrupted failures can be resumed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := daemonClient()
		if err != nil {
			return err
		}

		var id int64
		switch {
		case flagResumeSession != "":
			id, err = cli.ResumeSession(cmd.Context(), flagResumeSession)
			if err != nil {
				return err
			}
		case len(args) == 1:
			id, err = strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			if err := cli.Resume(cmd.Context(), id); err != nil {
				return err
			}
		default:
			return fmt.Errorf("a task id or --session is required")
		}

		fmt.Printf("Task %d queued for resume\n", id)
		return nil
	},
}

func init() {
	resumeCmd.Flags().StringVarP(&flagResumeSession, "session", "s", "", "resume by session id instead of task id")
	rootCmd.AddCommand(resumeCmd)
}
