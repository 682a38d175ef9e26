package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sevigo/pixel-warden/internal/app"
	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/wire"
)

var notifyType string

var notifyCmd = &cobra.Command{
	Use:   "notify [build-id]",
	Short: "Queues a notification for a build and delivers it in-process",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		notificationType, err := core.ParseNotificationType(notifyType)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("timeout"))
		defer cancel()

		tk, cleanup, err := wire.InitializeToolkit(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		n, err := tk.Notifier.Push(ctx, nil, args[0], notificationType)
		if err != nil {
			tk.Dispatcher.Stop()
			return fmt.Errorf("failed to push notification: %w", err)
		}
		return waitAndReport(ctx, tk, n.ID)
	},
}

// waitAndReport drains the in-process queue and prints the final state of the
// notification.
func waitAndReport(ctx context.Context, tk *app.Toolkit, notificationID string) error {
	tk.Dispatcher.Stop()

	n, err := tk.Store.GetNotification(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("failed to load notification %s: %w", notificationID, err)
	}
	view := newNotificationView(*n)
	if done, err := encode(os.Stdout, outputFormat(), view); done {
		return err
	}
	return writeNotifications(os.Stdout, []notificationView{view})
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	notifyCmd.Flags().StringVar(&notifyType, "type", string(core.NotificationDiffDetected), "Notification type to send")
	rootCmd.AddCommand(notifyCmd)
}
