package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sevigo/pixel-warden/internal/core"
)

const buildColumns = `b.id, b.project_id, b.name, b.number, b.job_status, COALESCE(b.type, '') AS type,
	b.pr_number, b.pr_head_commit, b.github_pull_request_id, b.reference_commit,
	b.reference_branch, b.base_screenshot_bucket_id, b.compare_screenshot_bucket_id,
	b.created_at, b.updated_at`

// diffStatusExpr classifies a diff joined as d with its compare screenshot as cs.
// Screenshots that failed to render carry a "(failed)" marker in their name.
const diffStatusExpr = `CASE
	WHEN d.compare_screenshot_id IS NULL THEN 'removed'
	WHEN cs.name LIKE '%(failed)%' THEN 'failure'
	WHEN d.base_screenshot_id IS NULL THEN 'added'
	WHEN d.score IS NOT NULL AND d.score > 0 THEN 'changed'
	ELSE 'unchanged'
END`

// CreateBuild inserts a build and assigns it the next number of its project.
// The per-project advisory lock serializes concurrent inserts so two builds of the
// same project never share a number.
func (s *postgresStore) CreateBuild(ctx context.Context, tx *Tx, build *core.Build) error {
	if err := build.Validate(); err != nil {
		return core.Unretryable(err)
	}
	if tx == nil {
		return s.InTx(ctx, func(tx *Tx) error {
			return s.CreateBuild(ctx, tx, build)
		})
	}
	if build.Name == "" {
		build.Name = core.DefaultBuildName
	}
	if build.JobStatus == "" {
		build.JobStatus = core.JobStatusPending
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, build.ProjectID); err != nil {
		return fmt.Errorf("failed to lock project %s: %w", build.ProjectID, err)
	}

	query := `
		INSERT INTO builds (id, project_id, name, number, job_status, type, pr_number, pr_head_commit,
			github_pull_request_id, reference_commit, reference_branch,
			base_screenshot_bucket_id, compare_screenshot_bucket_id)
		VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(number), 0) + 1 FROM builds WHERE project_id = $2),
			$4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, number, created_at, updated_at`
	row := tx.QueryRowxContext(ctx, query,
		uuid.NewString(), build.ProjectID, build.Name, build.JobStatus, nullableType(build.Type), build.PRNumber,
		build.PRHeadCommit, build.GitHubPullRequestID, build.ReferenceCommit, build.ReferenceBranch,
		build.BaseScreenshotBucketID, build.CompareScreenshotBucketID,
	)
	if err := row.Scan(&build.ID, &build.Number, &build.CreatedAt, &build.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert build: %w", err)
	}
	return nil
}

func (s *postgresStore) GetBuild(ctx context.Context, id string) (*core.Build, error) {
	var build core.Build
	query := `SELECT ` + buildColumns + ` FROM builds b WHERE b.id = $1`
	if err := s.db.GetContext(ctx, &build, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get build %s: %w", id, err)
	}
	return &build, nil
}

func (s *postgresStore) GetBuildLocation(ctx context.Context, buildID string) (*BuildLocation, error) {
	var loc BuildLocation
	query := `
		SELECT a.slug AS account_slug, p.name AS project_name, b.number
		FROM builds b
		JOIN projects p ON p.id = b.project_id
		JOIN accounts a ON a.id = p.account_id
		WHERE b.id = $1`
	if err := s.db.GetContext(ctx, &loc, query, buildID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get location of build %s: %w", buildID, err)
	}
	return &loc, nil
}

// LatestBuildsForCommit returns, per build name, the highest numbered build whose
// compare bucket was taken on commit.
func (s *postgresStore) LatestBuildsForCommit(ctx context.Context, commit string) ([]core.Build, error) {
	var builds []core.Build
	query := `
		SELECT DISTINCT ON (b.name) ` + buildColumns + `
		FROM builds b
		JOIN screenshot_buckets sb ON sb.id = b.compare_screenshot_bucket_id
		WHERE sb.commit = $1
		ORDER BY b.name ASC, b.number DESC`
	if err := s.db.SelectContext(ctx, &builds, query, commit); err != nil {
		return nil, fmt.Errorf("failed to list builds for commit %s: %w", commit, err)
	}
	return builds, nil
}

func (s *postgresStore) SetDiffValidationStatus(ctx context.Context, tx *Tx, buildID string, status core.ValidationStatus) (int64, error) {
	query := `UPDATE screenshot_diffs SET validation_status = $2, updated_at = NOW() WHERE build_id = $1`
	res, err := s.ext(tx).ExecContext(ctx, query, buildID, string(status))
	if err != nil {
		return 0, fmt.Errorf("failed to set validation status of build %s: %w", buildID, err)
	}
	return res.RowsAffected()
}

func (s *postgresStore) DiffJobStatuses(ctx context.Context, buildIDs []string) ([]BuildJobStatus, error) {
	var rows []BuildJobStatus
	if len(buildIDs) == 0 {
		return rows, nil
	}
	query := `
		SELECT build_id, job_status
		FROM screenshot_diffs
		WHERE build_id = ANY($1)
		GROUP BY build_id, job_status`
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(buildIDs)); err != nil {
		return nil, fmt.Errorf("failed to list diff job statuses: %w", err)
	}
	return rows, nil
}

func (s *postgresStore) CountDetectedDiffs(ctx context.Context, buildIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(buildIDs))
	if len(buildIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		BuildID string `db:"build_id"`
		Count   int    `db:"count"`
	}
	query := `
		SELECT d.build_id, COUNT(*) AS count
		FROM screenshot_diffs d
		LEFT JOIN screenshots cs ON cs.id = d.compare_screenshot_id
		WHERE d.build_id = ANY($1)
			AND (` + diffStatusExpr + `) IN ('added', 'changed', 'removed')
		GROUP BY d.build_id`
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(buildIDs)); err != nil {
		return nil, fmt.Errorf("failed to count detected diffs: %w", err)
	}
	for _, r := range rows {
		counts[r.BuildID] = r.Count
	}
	return counts, nil
}

func (s *postgresStore) DiffValidationStatuses(ctx context.Context, buildIDs []string) ([]BuildValidationStatus, error) {
	var rows []BuildValidationStatus
	if len(buildIDs) == 0 {
		return rows, nil
	}
	query := `
		SELECT build_id, COALESCE(validation_status, '') AS validation_status
		FROM screenshot_diffs
		WHERE build_id = ANY($1)
		GROUP BY build_id, COALESCE(validation_status, '')`
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(buildIDs)); err != nil {
		return nil, fmt.Errorf("failed to list diff validation statuses: %w", err)
	}
	return rows, nil
}

func (s *postgresStore) BuildStats(ctx context.Context, buildID string) (core.BuildStats, error) {
	var stats core.BuildStats
	var rows []struct {
		Status core.DiffStatus `db:"status"`
		Count  int             `db:"count"`
	}
	query := `
		SELECT (` + diffStatusExpr + `) AS status, COUNT(*) AS count
		FROM screenshot_diffs d
		LEFT JOIN screenshots cs ON cs.id = d.compare_screenshot_id
		WHERE d.build_id = $1
		GROUP BY 1`
	if err := s.db.SelectContext(ctx, &rows, query, buildID); err != nil {
		return stats, fmt.Errorf("failed to compute stats of build %s: %w", buildID, err)
	}
	for _, r := range rows {
		stats.Add(r.Status, r.Count)
	}
	return stats, nil
}

func nullableType(t core.BuildType) *string {
	if t == "" {
		return nil
	}
	s := string(t)
	return &s
}
