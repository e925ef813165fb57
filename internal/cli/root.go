// Package cli defines the spgate command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	// version is set by goreleaser ldflags.
	version = "dev"

	// configPath points at an optional TOML config file.
	configPath string

	// verbose forces debug logging regardless of config.
	verbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "spgate",
	Short: "HTTP gateway for a SharePoint document library",
	Long: `Spgate is a small HTTP gateway that uploads files into a SharePoint
document library and hands out short-lived download links, using an
Entra ID app registration to talk to Microsoft Graph.

Credentials are read from the environment (SP_TENANT_ID, SP_CLIENT_ID,
SP_CLIENT_SECRET, SP_SITE_ID) or a .env file in the working directory.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")
}
