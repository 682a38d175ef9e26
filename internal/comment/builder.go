// Package comment renders the pull request comment that summarizes every build of a
// commit, and the links it points to.
package comment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/status"
)

const (
	header     = "**The latest updates on your projects.**"
	dateLayout = "Jan 2, 2006, 3:04 PM"
)

// BuildLister lists the latest build of each name for a commit.
type BuildLister interface {
	LatestBuildsForCommit(ctx context.Context, commit string) ([]core.Build, error)
}

// StatusSource derives the statuses and stats shown in the comment.
type StatusSource interface {
	AggregatedStatuses(ctx context.Context, builds []core.Build) ([]core.AggregatedStatus, error)
	Stats(ctx context.Context, buildID string) (core.BuildStats, error)
}

// Builder implements core.CommentBuilder.
type Builder struct {
	builds   BuildLister
	statuses StatusSource
	urls     core.URLBuilder
}

var _ core.CommentBuilder = (*Builder)(nil)

func NewBuilder(builds BuildLister, statuses StatusSource, urls core.URLBuilder) *Builder {
	return &Builder{builds: builds, statuses: statuses, urls: urls}
}

// CommentBody returns a markdown table with one row per build name of the commit.
func (b *Builder) CommentBody(ctx context.Context, commit string) (string, error) {
	builds, err := b.builds.LatestBuildsForCommit(ctx, commit)
	if err != nil {
		return "", err
	}
	statuses, err := b.statuses.AggregatedStatuses(ctx, builds)
	if err != nil {
		return "", err
	}

	rows := make([]string, len(builds))
	g, gctx := errgroup.WithContext(ctx)
	for i := range builds {
		g.Go(func() error {
			row, err := b.row(gctx, &builds[i], statuses[i])
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	sort.Strings(rows)

	lines := append([]string{
		header,
		"",
		"| Build | Status | Details | Updated (UTC) |",
		"| :---- | :----- | :------ | :------------ |",
	}, rows...)
	return strings.Join(lines, "\n"), nil
}

func (b *Builder) row(ctx context.Context, build *core.Build, s core.AggregatedStatus) (string, error) {
	label, err := s.Label()
	if err != nil {
		return "", err
	}
	url, err := b.urls.BuildURL(ctx, build)
	if err != nil {
		return "", err
	}
	stats, err := b.statuses.Stats(ctx, build.ID)
	if err != nil {
		return "", err
	}

	review := ""
	if s == core.StatusDiffDetected {
		review = fmt.Sprintf(" ([Review](%s))", url)
	}
	details := status.StatsMessage(stats)
	if details == "" {
		details = "-"
	}
	return fmt.Sprintf("| **%s** ([Inspect](%s)) | %s%s | %s | %s |",
		build.Name, url, label, review, details, build.UpdatedAt.UTC().Format(dateLayout)), nil
}
