// Package notification turns a notification type into the message every
// provider reports.
package notification

import (
	"fmt"

	"github.com/sevigo/pixel-warden/internal/core"
)

const separator = " — "

// BuildPayload returns the description and per-provider states of a notification.
// stats is the summary produced by status.StatsMessage; it is only read by the
// outcome-bearing types. Reference builds never report a failing state.
func BuildPayload(n core.NotificationType, buildType core.BuildType, stats string) (core.NotificationPayload, error) {
	isReference := buildType == core.BuildTypeReference

	switch n {
	case core.NotificationQueued:
		return core.NotificationPayload{
			Description:  "Build is queued",
			GitHubState:  core.GitHubStatePending,
			GitLabState:  core.GitLabStatePending,
			VercelStatus: vercelStatus(core.VercelStatusRunning),
		}, nil

	case core.NotificationProgress:
		return core.NotificationPayload{
			Description:  "Build in progress...",
			GitHubState:  core.GitHubStatePending,
			GitLabState:  core.GitLabStateRunning,
			VercelStatus: vercelStatus(core.VercelStatusRunning),
		}, nil

	case core.NotificationNoDiffDetected:
		var description string
		switch {
		case stats == "" && isReference:
			description = "Used as new baseline"
		case stats == "":
			description = "Everything's good!"
		case isReference:
			description = stats + separator + "used as new baseline"
		default:
			description = stats + separator + "no change"
		}
		return core.NotificationPayload{
			Description:      description,
			GitHubState:      core.GitHubStateSuccess,
			GitLabState:      core.GitLabStateSuccess,
			VercelStatus:     vercelStatus(core.VercelStatusCompleted),
			VercelConclusion: vercelConclusion(core.VercelConclusionSucceeded),
		}, nil

	case core.NotificationDiffDetected:
		if isReference {
			return core.NotificationPayload{
				Description:      stats + separator + "used as new baseline",
				GitHubState:      core.GitHubStateSuccess,
				GitLabState:      core.GitLabStateSuccess,
				VercelStatus:     vercelStatus(core.VercelStatusCompleted),
				VercelConclusion: vercelConclusion(core.VercelConclusionSucceeded),
			}, nil
		}
		return core.NotificationPayload{
			Description:      stats + separator + "waiting for your decision",
			GitHubState:      core.GitHubStateFailure,
			GitLabState:      core.GitLabStateFailed,
			VercelStatus:     vercelStatus(core.VercelStatusCompleted),
			VercelConclusion: vercelConclusion(core.VercelConclusionFailed),
		}, nil

	case core.NotificationDiffAccepted:
		return core.NotificationPayload{
			Description: stats + separator + "changes approved",
			GitHubState: core.GitHubStateSuccess,
			GitLabState: core.GitLabStateSuccess,
		}, nil

	case core.NotificationDiffRejected:
		return core.NotificationPayload{
			Description: stats + separator + "changes rejected",
			GitHubState: core.GitHubStateFailure,
			GitLabState: core.GitLabStateFailed,
		}, nil

	default:
		return core.NotificationPayload{}, core.Unretryable(fmt.Errorf("unknown notification type %q", string(n)))
	}
}

// NeedsStats reports whether the payload of n mentions the build stats.
func NeedsStats(n core.NotificationType) bool {
	switch n {
	case core.NotificationNoDiffDetected, core.NotificationDiffDetected,
		core.NotificationDiffAccepted, core.NotificationDiffRejected:
		return true
	default:
		return false
	}
}

func vercelStatus(s core.VercelStatus) *core.VercelStatus {
	return &s
}

func vercelConclusion(c core.VercelConclusion) *core.VercelConclusion {
	return &c
}
