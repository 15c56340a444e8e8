package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage the account's sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the account's sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := c.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "End sessions by id (use logout for the current one)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid session id %q: %w", arg, err)
			}
			ids = append(ids, id)
		}

		c, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := c.DeleteSessions(cmd.Context(), ids...)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
