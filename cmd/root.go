/*
Copyright 2024 SerialLink Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cmd provides the CLI commands for iiod using Cobra.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openiio/iiod/config"
)

var (
	// Version is the application version (set at build time)
	Version = "dev"

	// Commit is the git commit (set at build time)
	Commit = "none"

	// BuildDate is the build date (set at build time)
	BuildDate = "unknown"

	// cfgFile is the path to the config file
	cfgFile string

	// verbose enables verbose output
	verbose bool

	// address is the daemon's TCP address, used by client commands
	address string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iiod",
	Short: "iiod - industrial I/O network daemon",
	Long: `iiod multiplexes reads from industrial I/O devices across any
number of concurrent subscribers, and exposes attribute read/write,
over a plain TCP connection.

Example usage:
  iiod serve                          Start the daemon
  iiod read dev0 8 4                  Read 8 samples of 4 bytes from dev0
  iiod attr-read dev0 sampling_freq   Read an attribute
  iiod version                        Show version information`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext executes the root command with a context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.iiod/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&address, "address", "localhost:30431", "daemon TCP address (can also be set via IIOD_ADDRESS env var)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("address", rootCmd.PersistentFlags().Lookup("address"))

	_ = viper.BindEnv("address", "IIOD_ADDRESS")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if err := config.InitViper(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if verbose {
		fmt.Printf("Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// GetConfig returns the loaded configuration
func GetConfig() (*config.Config, error) {
	return config.Load()
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose || viper.GetBool("verbose")
}

// GetAddress returns the daemon's TCP address
func GetAddress() string {
	addr := viper.GetString("address")
	if addr == "" {
		addr = "localhost:30431"
	}
	return addr
}
