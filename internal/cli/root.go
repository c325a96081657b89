// Package cli implements the givepulse command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped by the build.
var Version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "givepulse",
	Short: "Donation and campaign milestone engine",
	Long: `GivePulse ingests payment-processor webhooks, tracks campaign
fundraising totals, fires one-shot milestone automations, and exposes a
REST API for campaigns, stats, and automation logs.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default $GIVEPULSE_HOME/config.toml)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "givepulse %s\n", Version)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
