package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/pixel-warden/internal/core"
)

func TestStatsMessage(t *testing.T) {
	tests := []struct {
		name  string
		stats core.BuildStats
		want  string
	}{
		{name: "nothing to report", stats: core.BuildStats{Unchanged: 12, Total: 12}, want: ""},
		{name: "empty build", stats: core.BuildStats{}, want: ""},
		{name: "one changed", stats: core.BuildStats{Changed: 1, Total: 1}, want: "1 changed"},
		{
			name:  "every kind",
			stats: core.BuildStats{Changed: 3, Added: 2, Removed: 1, Failure: 2, Unchanged: 5, Total: 13},
			want:  "3 changed, 2 added, 1 removed, 2 failures",
		},
		{name: "single failure", stats: core.BuildStats{Failure: 1, Total: 1}, want: "1 failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatsMessage(tt.stats))
		})
	}
}

func TestAggregatedStatus_Label(t *testing.T) {
	label, err := core.StatusDiffDetected.Label()
	assert.NoError(t, err)
	assert.Equal(t, "🧿 Changes detected", label)

	stable, _ := core.StatusStable.Label()
	complete, _ := core.StatusComplete.Label()
	assert.Equal(t, stable, complete)

	_, err = core.AggregatedStatus("weird").Label()
	assert.True(t, core.IsUnretryable(err))
}
