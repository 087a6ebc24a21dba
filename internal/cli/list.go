package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks in dependency order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := daemonClient()
		if err != nil {
			return err
		}
		tasks, err := cli.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return nil
		}
		fmt.Print(renderTaskTable(tasks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
