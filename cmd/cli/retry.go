package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sevigo/pixel-warden/internal/wire"
)

var retryCmd = &cobra.Command{
	Use:   "retry [notification-id]",
	Short: "Resets a failed or pending notification and delivers it again",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("timeout"))
		defer cancel()

		tk, cleanup, err := wire.InitializeToolkit(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		if err := tk.Store.ResetNotification(ctx, args[0]); err != nil {
			tk.Dispatcher.Stop()
			return fmt.Errorf("failed to reset notification %s: %w", args[0], err)
		}
		if err := tk.Dispatcher.Dispatch(ctx, args[0]); err != nil {
			tk.Dispatcher.Stop()
			return fmt.Errorf("failed to dispatch notification %s: %w", args[0], err)
		}
		return waitAndReport(ctx, tk, args[0])
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.AddCommand(retryCmd)
}
