package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/headless/client"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current authentication state",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := c.GetAuthenticationStatus(cmd.Context())
		if err != nil {
			return err
		}
		if client.SessionGone(resp.Status) {
			fmt.Println("Session expired; log in again.")
			return nil
		}
		return printJSON(resp)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
