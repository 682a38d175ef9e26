package status

import (
	"fmt"
	"strings"

	"github.com/sevigo/pixel-warden/internal/core"
)

// StatsMessage summarizes the screenshots that need attention, for example
// "3 changed, 1 added". Unchanged screenshots are not mentioned; a build with
// nothing to report yields an empty string.
func StatsMessage(stats core.BuildStats) string {
	var parts []string
	if stats.Changed > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", stats.Changed))
	}
	if stats.Added > 0 {
		parts = append(parts, fmt.Sprintf("%d added", stats.Added))
	}
	if stats.Removed > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", stats.Removed))
	}
	if stats.Failure > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", stats.Failure, plural(stats.Failure, "failure", "failures")))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
