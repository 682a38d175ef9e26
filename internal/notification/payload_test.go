package notification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/status"
)

var allTypes = []core.NotificationType{
	core.NotificationQueued,
	core.NotificationProgress,
	core.NotificationNoDiffDetected,
	core.NotificationDiffDetected,
	core.NotificationDiffAccepted,
	core.NotificationDiffRejected,
}

func TestBuildPayload(t *testing.T) {
	tests := []struct {
		name      string
		n         core.NotificationType
		buildType core.BuildType
		stats     string
		wantDesc  string
		wantGH    core.GitHubState
		wantGL    core.GitLabState
		wantVS    *core.VercelStatus
		wantVC    *core.VercelConclusion
	}{
		{
			name: "queued", n: core.NotificationQueued, buildType: core.BuildTypeCheck,
			wantDesc: "Build is queued", wantGH: core.GitHubStatePending, wantGL: core.GitLabStatePending,
			wantVS: vercelStatus(core.VercelStatusRunning),
		},
		{
			name: "progress", n: core.NotificationProgress, buildType: core.BuildTypeCheck,
			wantDesc: "Build in progress...", wantGH: core.GitHubStatePending, wantGL: core.GitLabStateRunning,
			wantVS: vercelStatus(core.VercelStatusRunning),
		},
		{
			name: "no diff without stats", n: core.NotificationNoDiffDetected, buildType: core.BuildTypeCheck,
			wantDesc: "Everything's good!", wantGH: core.GitHubStateSuccess, wantGL: core.GitLabStateSuccess,
			wantVS: vercelStatus(core.VercelStatusCompleted), wantVC: vercelConclusion(core.VercelConclusionSucceeded),
		},
		{
			name: "no diff reference without stats", n: core.NotificationNoDiffDetected, buildType: core.BuildTypeReference,
			wantDesc: "Used as new baseline", wantGH: core.GitHubStateSuccess, wantGL: core.GitLabStateSuccess,
			wantVS: vercelStatus(core.VercelStatusCompleted), wantVC: vercelConclusion(core.VercelConclusionSucceeded),
		},
		{
			name: "no diff with stats", n: core.NotificationNoDiffDetected, buildType: core.BuildTypeCheck, stats: "1 failure",
			wantDesc: "1 failure — no change", wantGH: core.GitHubStateSuccess, wantGL: core.GitLabStateSuccess,
			wantVS: vercelStatus(core.VercelStatusCompleted), wantVC: vercelConclusion(core.VercelConclusionSucceeded),
		},
		{
			name: "diff detected on check", n: core.NotificationDiffDetected, buildType: core.BuildTypeCheck, stats: "2 changed",
			wantDesc: "2 changed — waiting for your decision", wantGH: core.GitHubStateFailure, wantGL: core.GitLabStateFailed,
			wantVS: vercelStatus(core.VercelStatusCompleted), wantVC: vercelConclusion(core.VercelConclusionFailed),
		},
		{
			name: "diff detected on orphan", n: core.NotificationDiffDetected, buildType: core.BuildTypeOrphan, stats: "2 added",
			wantDesc: "2 added — waiting for your decision", wantGH: core.GitHubStateFailure, wantGL: core.GitLabStateFailed,
			wantVS: vercelStatus(core.VercelStatusCompleted), wantVC: vercelConclusion(core.VercelConclusionFailed),
		},
		{
			name: "diff detected on reference", n: core.NotificationDiffDetected, buildType: core.BuildTypeReference, stats: "2 changed",
			wantDesc: "2 changed — used as new baseline", wantGH: core.GitHubStateSuccess, wantGL: core.GitLabStateSuccess,
			wantVS: vercelStatus(core.VercelStatusCompleted), wantVC: vercelConclusion(core.VercelConclusionSucceeded),
		},
		{
			name: "diff accepted", n: core.NotificationDiffAccepted, buildType: core.BuildTypeCheck, stats: "2 changed",
			wantDesc: "2 changed — changes approved", wantGH: core.GitHubStateSuccess, wantGL: core.GitLabStateSuccess,
		},
		{
			name: "diff rejected", n: core.NotificationDiffRejected, buildType: core.BuildTypeCheck, stats: "2 changed",
			wantDesc: "2 changed — changes rejected", wantGH: core.GitHubStateFailure, wantGL: core.GitLabStateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BuildPayload(tt.n, tt.buildType, tt.stats)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDesc, p.Description)
			assert.Equal(t, tt.wantGH, p.GitHubState)
			assert.Equal(t, tt.wantGL, p.GitLabState)
			assert.Equal(t, tt.wantVS, p.VercelStatus)
			assert.Equal(t, tt.wantVC, p.VercelConclusion)
		})
	}
}

func TestBuildPayload_ReferenceNeverFails(t *testing.T) {
	for _, n := range allTypes {
		if n == core.NotificationDiffRejected {
			// diff-rejected reports the review, not the build
			continue
		}
		p, err := BuildPayload(n, core.BuildTypeReference, "3 changed")
		require.NoError(t, err)
		assert.NotEqual(t, core.GitHubStateFailure, p.GitHubState, n)
		assert.NotEqual(t, core.GitLabStateFailed, p.GitLabState, n)
		if p.VercelConclusion != nil {
			assert.NotEqual(t, core.VercelConclusionFailed, *p.VercelConclusion, n)
		}
	}
}

func TestBuildPayload_ReviewTypesLeaveVercelUntouched(t *testing.T) {
	for _, n := range []core.NotificationType{core.NotificationDiffAccepted, core.NotificationDiffRejected} {
		p, err := BuildPayload(n, core.BuildTypeCheck, "1 changed")
		require.NoError(t, err)
		assert.Nil(t, p.VercelStatus)
		assert.Nil(t, p.VercelConclusion)
	}
}

func TestBuildPayload_UnknownType(t *testing.T) {
	_, err := BuildPayload("diff-exploded", core.BuildTypeCheck, "")
	require.Error(t, err)
	assert.True(t, core.IsUnretryable(err))
}

func TestBuildPayload_EndToEnd(t *testing.T) {
	t.Run("check build with one changed diff", func(t *testing.T) {
		stats := status.StatsMessage(core.BuildStats{Changed: 1, Total: 1})
		p, err := BuildPayload(core.NotificationDiffDetected, core.BuildTypeCheck, stats)
		require.NoError(t, err)
		assert.Contains(t, p.Description, "1 changed")
		assert.Contains(t, p.Description, "waiting for your decision")
		assert.Equal(t, core.GitHubStateFailure, p.GitHubState)
		require.NotNil(t, p.VercelConclusion)
		assert.Equal(t, core.VercelConclusionFailed, *p.VercelConclusion)
	})

	t.Run("reference build with one added diff", func(t *testing.T) {
		stats := status.StatsMessage(core.BuildStats{Added: 1, Total: 1})
		p, err := BuildPayload(core.NotificationDiffDetected, core.BuildTypeReference, stats)
		require.NoError(t, err)
		assert.Equal(t, core.GitHubStateSuccess, p.GitHubState)
		assert.True(t, strings.HasSuffix(p.Description, "used as new baseline"), p.Description)
	})
}

func TestNeedsStats(t *testing.T) {
	assert.False(t, NeedsStats(core.NotificationQueued))
	assert.False(t, NeedsStats(core.NotificationProgress))
	assert.True(t, NeedsStats(core.NotificationDiffDetected))
	assert.True(t, NeedsStats(core.NotificationDiffRejected))
}
