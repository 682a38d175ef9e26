package core

// Account owns projects and carries the GitLab credential of its owner.
type Account struct {
	ID                string  `db:"id"`
	Slug              string  `db:"slug"`
	GitLabAccessToken *string `db:"gitlab_access_token"`
}

// Project is the unit that receives builds.
type Project struct {
	ID               string `db:"id"`
	Name             string `db:"name"`
	AccountID        string `db:"account_id"`
	PRCommentEnabled bool   `db:"pr_comment_enabled"`
}

// GitHubRepository links a project to a GitHub repository.
type GitHubRepository struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// GitHubAccount is the owner (user or organization) of a GitHub repository.
type GitHubAccount struct {
	ID    string `db:"id"`
	Login string `db:"login"`
}

// GitHubInstallation is an active installation of the GitHub App.
type GitHubInstallation struct {
	ID       string `db:"id"`
	GitHubID int64  `db:"github_id"`
}

// GitHubPullRequest is the pull request a build belongs to.
type GitHubPullRequest struct {
	ID             string `db:"id"`
	Number         int    `db:"number"`
	CommentID      *int64 `db:"comment_id"`
	CommentDeleted bool   `db:"comment_deleted"`
}

// GitLabProject links a project to a GitLab project.
type GitLabProject struct {
	ID       string `db:"id"`
	GitLabID int64  `db:"gitlab_id"`
}

// VercelConfiguration is an installed Vercel integration.
type VercelConfiguration struct {
	ID                string  `db:"id"`
	VercelAccessToken *string `db:"vercel_access_token"`
	VercelTeamID      *string `db:"vercel_team_id"`
}

// VercelProject is a Vercel project with its active integration, if any.
type VercelProject struct {
	ID                  string
	ActiveConfiguration *VercelConfiguration
}

// VercelDeployment is the Vercel deployment a check belongs to.
type VercelDeployment struct {
	ID       string
	VercelID string
	Project  *VercelProject
}

// VercelCheck is a deployment check registered on Vercel for a build.
type VercelCheck struct {
	ID         string
	VercelID   string
	Deployment *VercelDeployment
}

// NotificationContext is everything a delivery needs, loaded in one fetch.
// Optional links are nil when the integration is not set up.
type NotificationContext struct {
	Notification BuildNotification
	Build        *Build
	Project      *Project
	Account      *Account
	Compare      *ScreenshotBucket

	GitHubRepository   *GitHubRepository
	GitHubAccount      *GitHubAccount
	GitHubInstallation *GitHubInstallation
	PullRequest        *GitHubPullRequest

	GitLabProject *GitLabProject
	VercelCheck   *VercelCheck
}

// Commit returns the commit the build reports on: the pull request head when known,
// otherwise the compare bucket commit.
func (c *NotificationContext) Commit() string {
	if c.Build != nil && c.Build.PRHeadCommit != nil && *c.Build.PRHeadCommit != "" {
		return *c.Build.PRHeadCommit
	}
	if c.Compare != nil {
		return c.Compare.Commit
	}
	return ""
}

// Delivery is the input every provider receives for one notification.
type Delivery struct {
	Context  *NotificationContext
	BuildURL string
	Payload  NotificationPayload
}
