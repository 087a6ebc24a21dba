package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pmartell/agentsched/internal/server"
)

var (
	flagSubmitTitle  string
	flagSubmitPrompt string
	flagSubmitCwd    string
	flagSubmitDeps   []int64
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a task to the scheduler",
	Long: `Submit a task. The prompt comes from --prompt, or from stdin when
--prompt is "-". Dependencies are existing task ids; the task will not
start until all of them complete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := flagSubmitPrompt
		if prompt == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading prompt from stdin: %w", err)
			}
			prompt = string(data)
		}
		if prompt == "" {
			return fmt.Errorf("a prompt is required")
		}

		cwd := flagSubmitCwd
		if cwd == "" {
			var err error
			cwd, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
		}
		cwd, err := filepath.Abs(cwd)
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}

		cli, err := daemonClient()
		if err != nil {
			return err
		}
		task, err := cli.Submit(cmd.Context(), server.SubmitRequest{
			Title:     flagSubmitTitle,
			Prompt:    prompt,
			Cwd:       cwd,
			DependsOn: flagSubmitDeps,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Submitted task %d: %s\n", task.ID, task.Title)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVarP(&flagSubmitTitle, "title", "t", "", "short task title")
	submitCmd.Flags().StringVarP(&flagSubmitPrompt, "prompt", "p", "", `agent prompt ("-" reads stdin)`)
	submitCmd.Flags().StringVarP(&flagSubmitCwd, "cwd", "C", "", "working directory for the agent (default: current directory)")
	submitCmd.Flags().Int64SliceVarP(&flagSubmitDeps, "dep", "d", nil, "task id this task depends on (repeatable)")
	submitCmd.MarkFlagRequired("title")
	rootCmd.AddCommand(submitCmd)
}
