// Package cmd provides the CLI commands for pacegate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pacegate/pacegate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pacegate",
	Short: "pacegate - ordered rate-limited admission controller",
	Long: `pacegate gates outbound requests behind named throttle policies:
no more than a configured number of requests in flight or completed within a
trailing time window, released in strict sequence order per stream.

Quick start:
  1. Create a config file: pacegate init
  2. Validate it:          pacegate check
  3. Exercise it:          pacegate simulate --policy default

Configuration:
  Config is loaded from pacegate.yaml in the current directory,
  $HOME/.pacegate/, or /etc/pacegate/.

  Environment variables can override config values with the PACEGATE_ prefix.
  Example: PACEGATE_LOG_LEVEL=debug`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./pacegate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
