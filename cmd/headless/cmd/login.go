package cmd

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/headless/client"
)

var (
	loginEmail    string
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and persist the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginEmail == "" && loginUsername == "" {
			return fmt.Errorf("either --email or --username is required")
		}
		if loginPassword == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			loginPassword = strings.TrimRight(line, "\r\n")
		}

		c, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := c.Login(cmd.Context(), client.LoginRequest{
			Email:    loginEmail,
			Username: loginUsername,
			Password: loginPassword,
		})
		if err != nil {
			return err
		}

		if resp.Status == http.StatusUnauthorized {
			fmt.Println("Login pending; the server requires further steps:")
			for _, flow := range resp.Data.Flows {
				fmt.Printf("  - %s\n", flow.ID)
			}
			fmt.Println("Complete a second factor with: headless mfa --code <code>")
			return nil
		}

		fmt.Printf("Logged in as %s\n", resp.Data.User.Display)
		return nil
	},
}

var mfaCode string

var mfaCmd = &cobra.Command{
	Use:   "mfa",
	Short: "Complete a pending login with a second-factor code",
	RunE: func(cmd *cobra.Command, args []string) error {
		if mfaCode == "" {
			return fmt.Errorf("--code is required")
		}
		c, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := c.MFAAuthenticate(cmd.Context(), client.MFAAuthenticateRequest{Code: mfaCode})
		if err != nil {
			return err
		}
		if !resp.Authenticated() {
			return fmt.Errorf("second factor did not complete (status %d)", resp.Status)
		}
		fmt.Printf("Logged in as %s\n", resp.Data.User.Display)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email address")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "account username")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)

	mfaCmd.Flags().StringVar(&mfaCode, "code", "", "TOTP or recovery code")
	rootCmd.AddCommand(mfaCmd)
}
