package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/sevigo/pixel-warden/internal/core"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type notificationView struct {
	ID        string    `json:"id" yaml:"id"`
	Type      string    `json:"type" yaml:"type"`
	JobStatus string    `json:"jobStatus" yaml:"jobStatus"`
	Attempts  int       `json:"attempts" yaml:"attempts"`
	LastError string    `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

func newNotificationView(n core.BuildNotification) notificationView {
	v := notificationView{
		ID:        n.ID,
		Type:      string(n.Type),
		JobStatus: string(n.JobStatus),
		Attempts:  n.Attempts,
		UpdatedAt: n.UpdatedAt,
	}
	if n.LastError != nil {
		v.LastError = *n.LastError
	}
	return v
}

// encode writes v as JSON or YAML. It reports false for the table format so the
// caller can render its own layout.
func encode(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(v)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return true, encoder.Encode(v)
	default:
		return false, nil
	}
}

func writeNotifications(w io.Writer, notifications []notificationView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "NOTIFICATION\tTYPE\tSTATUS\tATTEMPTS\tUPDATED\tLAST ERROR")
	for _, n := range notifications {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			n.ID,
			n.Type,
			jobStatusColor(n.JobStatus).Sprint(n.JobStatus),
			n.Attempts,
			n.UpdatedAt.Format(time.RFC822),
			n.LastError,
		)
	}
	return tw.Flush()
}

func jobStatusColor(status string) *color.Color {
	switch core.JobStatus(status) {
	case core.JobStatusComplete:
		return color.New(color.FgGreen)
	case core.JobStatusError:
		return color.New(color.FgRed, color.Bold)
	case core.JobStatusProgress:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgYellow)
	}
}

func buildStatusColor(status core.AggregatedStatus) *color.Color {
	switch status {
	case core.StatusStable, core.StatusAccepted, core.StatusComplete:
		return color.New(color.FgGreen, color.Bold)
	case core.StatusDiffDetected:
		return color.New(color.FgYellow, color.Bold)
	case core.StatusError, core.StatusRejected, core.StatusAborted, core.StatusExpired:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}
