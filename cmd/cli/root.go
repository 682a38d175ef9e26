package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pixel-warden-cli",
	Short: "pixel-warden-cli is the command-line interface for pixel-warden.",
	Long:  `A CLI for inspecting builds and delivering their notifications without going through the HTTP API.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		switch outputFormat() {
		case formatTable, formatJSON, formatYAML:
			return nil
		default:
			return fmt.Errorf("unknown output format %q", outputFormat())
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("output", "o", formatTable, "Output format: table, json or yaml")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "How long to wait for deliveries")

	for _, name := range []string{"output", "timeout"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
			os.Exit(1)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("PW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func outputFormat() string {
	return strings.ToLower(viper.GetString("output"))
}
