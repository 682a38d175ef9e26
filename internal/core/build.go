// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"errors"
	"time"
)

// DefaultBuildName is the name given to a build when the client does not provide one.
const DefaultBuildName = "default"

// JobStatus is the processing state shared by builds, screenshot diffs and
// notification deliveries.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusProgress JobStatus = "progress"
	JobStatusComplete JobStatus = "complete"
	JobStatusError    JobStatus = "error"
	JobStatusAborted  JobStatus = "aborted"
)

// BuildType tells whether a build gates a change or establishes a baseline.
type BuildType string

const (
	BuildTypeOrphan    BuildType = "orphan"
	BuildTypeReference BuildType = "reference"
	BuildTypeCheck     BuildType = "check"
)

// ErrSameBuckets is returned when a build compares a screenshot bucket against itself.
var ErrSameBuckets = errors.New("the base screenshot bucket should be different to the compare one")

// Build is one comparison run of a project.
type Build struct {
	ID                        string    `db:"id"`
	ProjectID                 string    `db:"project_id"`
	Name                      string    `db:"name"`
	Number                    int       `db:"number"`
	JobStatus                 JobStatus `db:"job_status"`
	Type                      BuildType `db:"type"`
	PRNumber                  *int      `db:"pr_number"`
	PRHeadCommit              *string   `db:"pr_head_commit"`
	GitHubPullRequestID       *string   `db:"github_pull_request_id"`
	ReferenceCommit           *string   `db:"reference_commit"`
	ReferenceBranch           *string   `db:"reference_branch"`
	BaseScreenshotBucketID    *string   `db:"base_screenshot_bucket_id"`
	CompareScreenshotBucketID string    `db:"compare_screenshot_bucket_id"`
	CreatedAt                 time.Time `db:"created_at"`
	UpdatedAt                 time.Time `db:"updated_at"`
}

// Validate checks the invariants a build must hold before it is written.
func (b *Build) Validate() error {
	if b.ProjectID == "" {
		return errors.New("build project id is required")
	}
	if b.CompareScreenshotBucketID == "" {
		return errors.New("build compare screenshot bucket id is required")
	}
	if b.BaseScreenshotBucketID != nil && *b.BaseScreenshotBucketID == b.CompareScreenshotBucketID {
		return ErrSameBuckets
	}
	return nil
}

// ScreenshotBucket groups the screenshots uploaded for one commit.
type ScreenshotBucket struct {
	ID     string `db:"id"`
	Name   string `db:"name"`
	Commit string `db:"commit"`
	Branch string `db:"branch"`
}

// DiffStatus is the classification of a screenshot diff derived from which
// screenshots are present and the stored similarity verdict.
type DiffStatus string

const (
	DiffStatusAdded     DiffStatus = "added"
	DiffStatusRemoved   DiffStatus = "removed"
	DiffStatusChanged   DiffStatus = "changed"
	DiffStatusUnchanged DiffStatus = "unchanged"
	DiffStatusFailure   DiffStatus = "failure"
)

// ValidationStatus is the verdict a reviewer gave to a screenshot diff.
type ValidationStatus string

const (
	ValidationAccepted ValidationStatus = "accepted"
	ValidationRejected ValidationStatus = "rejected"
	ValidationUnknown  ValidationStatus = ""
)

// BuildStats holds the number of diffs of a build per classification.
type BuildStats struct {
	Failure   int `json:"failure" yaml:"failure"`
	Added     int `json:"added" yaml:"added"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
	Changed   int `json:"changed" yaml:"changed"`
	Removed   int `json:"removed" yaml:"removed"`
	Total     int `json:"total" yaml:"total"`
}

// Add records count diffs of the given classification.
func (s *BuildStats) Add(status DiffStatus, count int) {
	switch status {
	case DiffStatusFailure:
		s.Failure += count
	case DiffStatusAdded:
		s.Added += count
	case DiffStatusUnchanged:
		s.Unchanged += count
	case DiffStatusChanged:
		s.Changed += count
	case DiffStatusRemoved:
		s.Removed += count
	}
	s.Total += count
}
