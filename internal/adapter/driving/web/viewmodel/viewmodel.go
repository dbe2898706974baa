// Package viewmodel defines presentation-ready structs for the badge renderers.
// View models decouple rendering from domain model and poller types.
package viewmodel

// BadgeKind selects which of the badge layouts a renderer draws.
type BadgeKind int

const (
	// BadgeCollapsed renders nothing: no checks, or the token cannot read them.
	BadgeCollapsed BadgeKind = iota
	// BadgeLoading renders a loading indicator at the badge's fixed height.
	BadgeLoading
	// BadgePlaceholder renders an empty box at the badge's fixed height.
	BadgePlaceholder
	// BadgeStatus renders the full summary and detail panel.
	BadgeStatus
)

// BadgeViewModel holds presentation-ready data for one build status badge.
type BadgeViewModel struct {
	Kind         BadgeKind
	RepoFullName string
	Branch       string
	ShortSHA     string
	State        string // success, pending, failure
	Icon         string
	Text         string // "Build passing", "Build running", "Build failing".
	Subtext      string // Time since the latest check run activity, or the check count.
	ActionsURL   string
	Paused       bool // Polling stopped; the data shown is the last good result.

	CheckRuns     []CheckRunViewModel
	MoreCheckRuns int
	Statuses      []CommitStatusViewModel
	MoreStatuses  int
}

// CheckRunViewModel holds presentation-ready data for a single check run row.
type CheckRunViewModel struct {
	Name   string
	State  string // success, pending, failure, neutral
	Icon   string
	Timing string // Duration when finished, elapsed time while running.
	URL    string
}

// CommitStatusViewModel holds presentation-ready data for a single commit status row.
type CommitStatusViewModel struct {
	Context     string
	Description string
	State       string
	Icon        string
	TimeAgo     string
	URL         string
}
