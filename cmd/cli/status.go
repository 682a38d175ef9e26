package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/status"
	"github.com/sevigo/pixel-warden/internal/wire"
)

type statusView struct {
	BuildID       string             `json:"buildId" yaml:"buildId"`
	Number        int                `json:"number" yaml:"number"`
	Name          string             `json:"name" yaml:"name"`
	Status        string             `json:"status" yaml:"status"`
	Label         string             `json:"label" yaml:"label"`
	Summary       string             `json:"summary" yaml:"summary"`
	Stats         core.BuildStats    `json:"stats" yaml:"stats"`
	Notifications []notificationView `json:"notifications" yaml:"notifications"`
}

var statusCmd = &cobra.Command{
	Use:   "status [build-id]",
	Short: "Shows the aggregated status of a build and its notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		tk, cleanup, err := wire.InitializeToolkit(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()
		defer tk.Dispatcher.Stop()

		build, err := tk.Store.GetBuild(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load build %s: %w", args[0], err)
		}
		aggregated, err := tk.Statuses.AggregatedStatus(ctx, *build)
		if err != nil {
			return fmt.Errorf("failed to aggregate build status: %w", err)
		}
		label, err := aggregated.Label()
		if err != nil {
			return err
		}
		stats, err := tk.Statuses.Stats(ctx, build.ID)
		if err != nil {
			return fmt.Errorf("failed to load build stats: %w", err)
		}
		notifications, err := tk.Store.ListNotifications(ctx, build.ID)
		if err != nil {
			return fmt.Errorf("failed to list notifications: %w", err)
		}

		view := statusView{
			BuildID: build.ID,
			Number:  build.Number,
			Name:    build.Name,
			Status:  string(aggregated),
			Label:   label,
			Summary: status.StatsMessage(stats),
			Stats:   stats,
		}
		for _, n := range notifications {
			view.Notifications = append(view.Notifications, newNotificationView(n))
		}

		if done, err := encode(os.Stdout, outputFormat(), view); done {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "BUILD\t#%d %s (%s)\n", view.Number, view.Name, view.BuildID)
		fmt.Fprintf(w, "STATUS\t%s\n", buildStatusColor(aggregated).Sprint(view.Label))
		if view.Summary != "" {
			fmt.Fprintf(w, "DIFFS\t%s\n", view.Summary)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if len(view.Notifications) == 0 {
			return nil
		}
		fmt.Fprintln(os.Stdout)
		return writeNotifications(os.Stdout, view.Notifications)
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.AddCommand(statusCmd)
}
