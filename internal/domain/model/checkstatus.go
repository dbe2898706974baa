package model

import "time"

// CheckRun represents an individual CI/CD check run from the GitHub Checks API.
// Records are copied verbatim from upstream and replaced wholesale on each fetch.
type CheckRun struct {
	ID          int64      // GitHub check run ID.
	Name        string     // Check run name (e.g., "build", "lint").
	Status      string     // queued, in_progress, completed.
	Conclusion  string     // success, failure, cancelled, timed_out; empty while incomplete.
	StartedAt   *time.Time // Nil if the run has not started.
	CompletedAt *time.Time // Nil until the run completes.
	DetailsURL  string     // URL supplied by the integration that created the run.
	HTMLURL     string     // URL of the run on github.com.
}

// LastActivity returns CompletedAt if set, otherwise StartedAt. Nil if neither is set.
func (cr CheckRun) LastActivity() *time.Time {
	if cr.CompletedAt != nil {
		return cr.CompletedAt
	}
	return cr.StartedAt
}

// CombinedStatus represents the aggregated commit status from the GitHub Status API.
type CombinedStatus struct {
	State    string         // Overall state: success, failure, pending, error.
	Statuses []CommitStatus // Individual status entries.
}

// CommitStatus represents an individual status entry from the GitHub Status API.
type CommitStatus struct {
	ID          int64
	State       string // success, failure, pending, error.
	Description string
	Context     string // CI service identifier (e.g., "ci/circleci").
	TargetURL   string
	CreatedAt   time.Time
}

// BuildStatusResult is the reduced build status of a branch head commit.
// It is constructed fresh for every request and never persisted.
type BuildStatusResult struct {
	SHA               string
	OverallStatus     OverallStatus
	OverallConclusion OverallStatus
	CheckRuns         []CheckRun
	CommitStatuses    []CommitStatus
	TotalCount        int
	PermissionError   bool // Set when the token may not read checks or statuses for the repo.
}

// MostRecentActivity returns the latest CompletedAt (falling back to StartedAt)
// across all check runs, or nil when no check run has a timestamp.
func (r BuildStatusResult) MostRecentActivity() *time.Time {
	var newest *time.Time
	for _, cr := range r.CheckRuns {
		ts := cr.LastActivity()
		if ts == nil {
			continue
		}
		if newest == nil || ts.After(*newest) {
			newest = ts
		}
	}
	return newest
}
