package core

// GitHubState is the commit status state understood by GitHub.
type GitHubState string

const (
	GitHubStatePending GitHubState = "pending"
	GitHubStateSuccess GitHubState = "success"
	GitHubStateError   GitHubState = "error"
	GitHubStateFailure GitHubState = "failure"
)

// GitLabState is the commit status state understood by GitLab.
type GitLabState string

const (
	GitLabStatePending  GitLabState = "pending"
	GitLabStateRunning  GitLabState = "running"
	GitLabStateSuccess  GitLabState = "success"
	GitLabStateFailed   GitLabState = "failed"
	GitLabStateCanceled GitLabState = "canceled"
)

// VercelStatus is the status of a Vercel deployment check.
type VercelStatus string

const (
	VercelStatusCompleted VercelStatus = "completed"
	VercelStatusRunning   VercelStatus = "running"
)

// VercelConclusion is the conclusion of a completed Vercel deployment check.
type VercelConclusion string

const (
	VercelConclusionNeutral   VercelConclusion = "neutral"
	VercelConclusionSucceeded VercelConclusion = "succeeded"
	VercelConclusionCanceled  VercelConclusion = "canceled"
	VercelConclusionFailed    VercelConclusion = "failed"
	VercelConclusionSkipped   VercelConclusion = "skipped"
)

// NotificationPayload is the provider agnostic message of a delivery: one line of text
// plus one state per provider vocabulary. A nil Vercel field means the check must not
// be touched.
type NotificationPayload struct {
	Description      string
	GitHubState      GitHubState
	GitLabState      GitLabState
	VercelStatus     *VercelStatus
	VercelConclusion *VercelConclusion
}
