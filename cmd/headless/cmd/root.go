package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmcleod/headless/client"
	"github.com/jmcleod/headless/credstore"
)

var (
	baseURL      string
	clientType   string
	csrfEndpoint string
	dataDir      string
)

var rootCmd = &cobra.Command{
	Use:   "headless",
	Short: "headless is a command line client for allauth headless API servers",
	Long: `A command line client for django-allauth headless API servers.
The session token is persisted, sealed, under the data directory so a
login survives across invocations. Set HEADLESS_SECRET to control the
sealing secret.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8000", "identity server base URL")
	rootCmd.PersistentFlags().StringVar(&clientType, "client", "app", "client scope: browser or app")
	rootCmd.PersistentFlags().StringVar(&csrfEndpoint, "csrf-endpoint", "", "endpoint to pre-fetch CSRF tokens from before mutating requests")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory for the persisted session")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".headless"
	}
	return filepath.Join(home, ".headless")
}

// newClient builds a client whose session token persists across
// invocations in a sealed bbolt database under the data directory. The
// returned cleanup must run before the process exits.
func newClient() (*client.Client, func(), error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	secret := os.Getenv("HEADLESS_SECRET")
	if secret == "" {
		// Persisted without a user secret the token is only protected
		// against casual file copies, not a determined attacker.
		secret = "headless-cli-default"
	}

	persist, err := credstore.NewBoltFromFile(filepath.Join(dataDir, "credentials.db"), []byte(secret), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	store := credstore.NewMemory(credstore.WithPersistence(persist))

	opts := []client.Option{
		client.WithClientType(client.ClientType(clientType)),
		client.WithCredentialStore(store),
	}
	if csrfEndpoint != "" {
		opts = append(opts, client.WithCSRFTokenEndpoint(csrfEndpoint))
	}

	c, err := client.New(baseURL, opts...)
	if err != nil {
		persist.Close()
		return nil, nil, err
	}
	return c, func() { persist.Close() }, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render response: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
