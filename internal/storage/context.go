package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sevigo/pixel-warden/internal/core"
)

// notificationContextRow is the flat result of the delivery context query. Columns
// of optional relations are nullable.
type notificationContextRow struct {
	core.BuildNotification

	BuildFound                *string         `db:"b_id"`
	ProjectID                 *string         `db:"b_project_id"`
	Name                      *string         `db:"b_name"`
	Number                    *int            `db:"b_number"`
	BuildJobStatus            *core.JobStatus `db:"b_job_status"`
	Type                      *core.BuildType `db:"b_type"`
	PRNumber                  *int            `db:"b_pr_number"`
	PRHeadCommit              *string         `db:"b_pr_head_commit"`
	GitHubPullRequestID       *string         `db:"b_github_pull_request_id"`
	ReferenceCommit           *string         `db:"b_reference_commit"`
	ReferenceBranch           *string         `db:"b_reference_branch"`
	BaseScreenshotBucketID    *string         `db:"b_base_screenshot_bucket_id"`
	CompareScreenshotBucketID *string         `db:"b_compare_screenshot_bucket_id"`
	BuildCreatedAt            *time.Time      `db:"b_created_at"`
	BuildUpdatedAt            *time.Time      `db:"b_updated_at"`

	ProjectFound     *string `db:"p_id"`
	ProjectName      *string `db:"p_name"`
	ProjectAccountID *string `db:"p_account_id"`
	PRCommentEnabled *bool   `db:"p_pr_comment_enabled"`

	AccountFound      *string `db:"a_id"`
	AccountSlug       *string `db:"a_slug"`
	GitLabAccessToken *string `db:"a_gitlab_access_token"`

	CompareFound  *string `db:"sb_id"`
	CompareName   *string `db:"sb_name"`
	CompareCommit *string `db:"sb_commit"`
	CompareBranch *string `db:"sb_branch"`

	RepositoryID   *string `db:"gr_id"`
	RepositoryName *string `db:"gr_name"`
	GHAccountID    *string `db:"ga_id"`
	GHAccountLogin *string `db:"ga_login"`
	InstallationID *string `db:"gi_id"`
	InstallationGH *int64  `db:"gi_github_id"`

	PullRequestID      *string `db:"pr_id"`
	PullRequestNumber  *int    `db:"pr_number"`
	PullRequestComment *int64  `db:"pr_comment_id"`
	PullRequestDeleted *bool   `db:"pr_comment_deleted"`

	GitLabProjectID *string `db:"glp_id"`
	GitLabID        *int64  `db:"glp_gitlab_id"`

	CheckID         *string `db:"vc_id"`
	CheckVercelID   *string `db:"vc_vercel_id"`
	DeploymentID    *string `db:"vd_id"`
	DeploymentVID   *string `db:"vd_vercel_id"`
	VercelProjectID *string `db:"vp_id"`
	ConfigurationID *string `db:"vcf_id"`
	VercelToken     *string `db:"vcf_vercel_access_token"`
	VercelTeamID    *string `db:"vcf_vercel_team_id"`
}

const notificationContextQuery = `
	SELECT
		n.id, n.build_id, n.type, n.job_status, n.attempts, n.last_error,
		n.next_attempt_at, n.created_at, n.updated_at,

		b.id AS b_id, b.project_id AS b_project_id, b.name AS b_name, b.number AS b_number,
		b.job_status AS b_job_status, b.type AS b_type, b.pr_number AS b_pr_number,
		b.pr_head_commit AS b_pr_head_commit, b.github_pull_request_id AS b_github_pull_request_id,
		b.reference_commit AS b_reference_commit, b.reference_branch AS b_reference_branch,
		b.base_screenshot_bucket_id AS b_base_screenshot_bucket_id,
		b.compare_screenshot_bucket_id AS b_compare_screenshot_bucket_id,
		b.created_at AS b_created_at, b.updated_at AS b_updated_at,

		p.id AS p_id, p.name AS p_name, p.account_id AS p_account_id,
		p.pr_comment_enabled AS p_pr_comment_enabled,

		a.id AS a_id, a.slug AS a_slug, a.gitlab_access_token AS a_gitlab_access_token,

		sb.id AS sb_id, sb.name AS sb_name, sb.commit AS sb_commit, sb.branch AS sb_branch,

		gr.id AS gr_id, gr.name AS gr_name,
		ga.id AS ga_id, ga.login AS ga_login,
		gi.id AS gi_id, gi.github_id AS gi_github_id,

		pr.id AS pr_id, pr.number AS pr_number, pr.comment_id AS pr_comment_id,
		pr.comment_deleted AS pr_comment_deleted,

		glp.id AS glp_id, glp.gitlab_id AS glp_gitlab_id,

		vc.id AS vc_id, vc.vercel_id AS vc_vercel_id,
		vd.id AS vd_id, vd.vercel_id AS vd_vercel_id,
		vp.id AS vp_id,
		vcf.id AS vcf_id, vcf.vercel_access_token AS vcf_vercel_access_token,
		vcf.vercel_team_id AS vcf_vercel_team_id
	FROM build_notifications n
	LEFT JOIN builds b ON b.id = n.build_id
	LEFT JOIN projects p ON p.id = b.project_id
	LEFT JOIN accounts a ON a.id = p.account_id
	LEFT JOIN screenshot_buckets sb ON sb.id = b.compare_screenshot_bucket_id
	LEFT JOIN github_repositories gr ON gr.id = p.github_repository_id
	LEFT JOIN github_accounts ga ON ga.id = gr.github_account_id
	LEFT JOIN github_installations gi ON gi.id = gr.github_installation_id AND gi.deleted = FALSE
	LEFT JOIN github_pull_requests pr ON pr.id = b.github_pull_request_id
	LEFT JOIN gitlab_projects glp ON glp.id = p.gitlab_project_id
	LEFT JOIN vercel_checks vc ON vc.build_id = b.id
	LEFT JOIN vercel_deployments vd ON vd.id = vc.vercel_deployment_id
	LEFT JOIN vercel_projects vp ON vp.id = vd.vercel_project_id
	LEFT JOIN vercel_configurations vcf ON vcf.id = vp.active_configuration_id AND vcf.deleted = FALSE
	WHERE n.id = $1`

// LoadNotificationContext fetches a notification together with every record a
// delivery needs. Broken references on the required chain are reported as
// unretryable invariant errors.
func (s *postgresStore) LoadNotificationContext(ctx context.Context, notificationID string) (*core.NotificationContext, error) {
	var row notificationContextRow
	if err := s.db.GetContext(ctx, &row, notificationContextQuery, notificationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.Invariant("notification %s not found", notificationID)
		}
		return nil, fmt.Errorf("failed to load notification %s: %w", notificationID, err)
	}
	return row.toContext()
}

func (r *notificationContextRow) toContext() (*core.NotificationContext, error) {
	nc := &core.NotificationContext{Notification: r.BuildNotification}

	if r.BuildFound == nil {
		return nil, core.Invariant("build %s not found", r.BuildNotification.BuildID)
	}
	nc.Build = &core.Build{
		ID:                        *r.BuildFound,
		ProjectID:                 deref(r.ProjectID),
		Name:                      deref(r.Name),
		Number:                    deref(r.Number),
		JobStatus:                 deref(r.BuildJobStatus),
		Type:                      deref(r.Type),
		PRNumber:                  r.PRNumber,
		PRHeadCommit:              r.PRHeadCommit,
		GitHubPullRequestID:       r.GitHubPullRequestID,
		ReferenceCommit:           r.ReferenceCommit,
		ReferenceBranch:           r.ReferenceBranch,
		BaseScreenshotBucketID:    r.BaseScreenshotBucketID,
		CompareScreenshotBucketID: deref(r.CompareScreenshotBucketID),
		CreatedAt:                 deref(r.BuildCreatedAt),
		UpdatedAt:                 deref(r.BuildUpdatedAt),
	}

	if r.ProjectFound == nil {
		return nil, core.Invariant("project not found for build %s", nc.Build.ID)
	}
	nc.Project = &core.Project{
		ID:               *r.ProjectFound,
		Name:             deref(r.ProjectName),
		AccountID:        deref(r.ProjectAccountID),
		PRCommentEnabled: deref(r.PRCommentEnabled),
	}

	if r.AccountFound == nil {
		return nil, core.Invariant("account not found for project %s", nc.Project.ID)
	}
	nc.Account = &core.Account{
		ID:                *r.AccountFound,
		Slug:              deref(r.AccountSlug),
		GitLabAccessToken: r.GitLabAccessToken,
	}

	if r.CompareFound == nil {
		return nil, core.Invariant("compare screenshot bucket not found for build %s", nc.Build.ID)
	}
	nc.Compare = &core.ScreenshotBucket{
		ID:     *r.CompareFound,
		Name:   deref(r.CompareName),
		Commit: deref(r.CompareCommit),
		Branch: deref(r.CompareBranch),
	}

	if r.RepositoryID != nil {
		nc.GitHubRepository = &core.GitHubRepository{ID: *r.RepositoryID, Name: deref(r.RepositoryName)}
		if r.GHAccountID == nil {
			return nil, core.Invariant("github account not found for repository %s", *r.RepositoryID)
		}
		nc.GitHubAccount = &core.GitHubAccount{ID: *r.GHAccountID, Login: deref(r.GHAccountLogin)}
		if r.InstallationID != nil {
			nc.GitHubInstallation = &core.GitHubInstallation{ID: *r.InstallationID, GitHubID: deref(r.InstallationGH)}
		}
	}

	if r.PullRequestID != nil {
		nc.PullRequest = &core.GitHubPullRequest{
			ID:             *r.PullRequestID,
			Number:         deref(r.PullRequestNumber),
			CommentID:      r.PullRequestComment,
			CommentDeleted: deref(r.PullRequestDeleted),
		}
	}

	if r.GitLabProjectID != nil {
		nc.GitLabProject = &core.GitLabProject{ID: *r.GitLabProjectID, GitLabID: deref(r.GitLabID)}
	}

	if r.CheckID != nil {
		if r.DeploymentID == nil {
			return nil, core.Invariant("vercel deployment not found for check %s", *r.CheckID)
		}
		if r.VercelProjectID == nil {
			return nil, core.Invariant("vercel project not found for deployment %s", *r.DeploymentID)
		}
		project := &core.VercelProject{ID: *r.VercelProjectID}
		if r.ConfigurationID != nil {
			project.ActiveConfiguration = &core.VercelConfiguration{
				ID:                *r.ConfigurationID,
				VercelAccessToken: r.VercelToken,
				VercelTeamID:      r.VercelTeamID,
			}
		}
		nc.VercelCheck = &core.VercelCheck{
			ID:       *r.CheckID,
			VercelID: deref(r.CheckVercelID),
			Deployment: &core.VercelDeployment{
				ID:       *r.DeploymentID,
				VercelID: deref(r.DeploymentVID),
				Project:  project,
			},
		}
	}

	return nc, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
