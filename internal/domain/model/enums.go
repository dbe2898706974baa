package model

// OverallStatus is the single verdict produced by reducing all check runs and
// commit statuses of a commit.
type OverallStatus string

const (
	OverallSuccess OverallStatus = "success"
	OverallPending OverallStatus = "pending"
	OverallFailure OverallStatus = "failure"
)

// Check run statuses reported by the GitHub Checks API.
const (
	CheckStatusQueued     = "queued"
	CheckStatusInProgress = "in_progress"
	CheckStatusCompleted  = "completed"
)

// Check run conclusions that count as a failed build.
const (
	ConclusionFailure   = "failure"
	ConclusionCancelled = "cancelled" //nolint:misspell // GitHub API uses British "cancelled"
	ConclusionTimedOut  = "timed_out"
)

// Commit status states reported by the GitHub Status API.
const (
	StatusStateSuccess = "success"
	StatusStatePending = "pending"
	StatusStateFailure = "failure"
	StatusStateError   = "error"
)
