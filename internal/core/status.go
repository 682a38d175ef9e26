package core

import "fmt"

// AggregatedStatus is the single lifecycle label of a build. It is derived from the
// build and its screenshot diffs on every read and is never stored.
type AggregatedStatus string

const (
	StatusExpired      AggregatedStatus = "expired"
	StatusPending      AggregatedStatus = "pending"
	StatusProgress     AggregatedStatus = "progress"
	StatusComplete     AggregatedStatus = "complete"
	StatusError        AggregatedStatus = "error"
	StatusAborted      AggregatedStatus = "aborted"
	StatusStable       AggregatedStatus = "stable"
	StatusDiffDetected AggregatedStatus = "diffDetected"
	StatusAccepted     AggregatedStatus = "accepted"
	StatusRejected     AggregatedStatus = "rejected"
)

// Label returns the human readable label shown in pull request comments.
func (s AggregatedStatus) Label() (string, error) {
	switch s {
	case StatusAccepted:
		return "👍 Changes approved", nil
	case StatusAborted:
		return "🙅 Build aborted", nil
	case StatusDiffDetected:
		return "🧿 Changes detected", nil
	case StatusError:
		return "❌ An error happened", nil
	case StatusExpired:
		return "💀 Build expired", nil
	case StatusPending:
		return "📭 Waiting for screenshots", nil
	case StatusProgress:
		return "🚜 Diffing screenshots", nil
	case StatusRejected:
		return "👎 Changes rejected", nil
	case StatusStable, StatusComplete:
		return "✅ No change detected", nil
	default:
		return "", Unretryable(fmt.Errorf("unknown build status %q", string(s)))
	}
}
