package viewmodel

import (
	"fmt"
	"time"

	"github.com/ericfisherdev/buildstatus/internal/application"
	"github.com/ericfisherdev/buildstatus/internal/domain/model"
)

// Detail panel limits.
const (
	MaxCheckRuns = 5
	MaxStatuses  = 3
)

const shortSHALength = 7

// Status icons shared by the HTML and terminal renderers.
const (
	IconSuccess = "✓"
	IconPending = "●"
	IconFailure = "✗"
	IconNeutral = "○"
)

// NewBadge converts a poller snapshot into the badge to draw at time now.
func NewBadge(state application.PollState, ref model.RepoRef, now time.Time) BadgeViewModel {
	badge := BadgeViewModel{
		RepoFullName: ref.FullName(),
		Branch:       ref.Branch,
		ActionsURL:   ref.ActionsURL(),
	}

	result := state.Result
	switch {
	case result == nil && state.Phase == application.PhaseLoading:
		badge.Kind = BadgeLoading
		return badge
	case result == nil:
		badge.Kind = BadgePlaceholder
		return badge
	case result.TotalCount == 0 || result.PermissionError:
		badge.Kind = BadgeCollapsed
		return badge
	}

	badge.Kind = BadgeStatus
	badge.Paused = state.Phase == application.PhaseSuspended
	badge.State = string(result.OverallStatus)
	badge.Icon = overallIcon(result.OverallStatus)
	badge.Text = overallText(result.OverallStatus)
	badge.ShortSHA = result.SHA
	if len(badge.ShortSHA) > shortSHALength {
		badge.ShortSHA = badge.ShortSHA[:shortSHALength]
	}

	if latest := result.MostRecentActivity(); latest != nil {
		badge.Subtext = FormatTimeAgo(*latest, now)
	} else {
		badge.Subtext = checkCount(result.TotalCount)
	}

	runs := result.CheckRuns
	if len(runs) > MaxCheckRuns {
		badge.MoreCheckRuns = len(runs) - MaxCheckRuns
		runs = runs[:MaxCheckRuns]
	}
	badge.CheckRuns = make([]CheckRunViewModel, 0, len(runs))
	for _, cr := range runs {
		badge.CheckRuns = append(badge.CheckRuns, toCheckRunViewModel(cr, now))
	}

	statuses := result.CommitStatuses
	if len(statuses) > MaxStatuses {
		badge.MoreStatuses = len(statuses) - MaxStatuses
		statuses = statuses[:MaxStatuses]
	}
	badge.Statuses = make([]CommitStatusViewModel, 0, len(statuses))
	for _, cs := range statuses {
		badge.Statuses = append(badge.Statuses, CommitStatusViewModel{
			Context:     cs.Context,
			Description: cs.Description,
			State:       cs.State,
			Icon:        stateIcon(cs.State),
			TimeAgo:     FormatTimeAgo(cs.CreatedAt, now),
			URL:         cs.TargetURL,
		})
	}

	return badge
}

func toCheckRunViewModel(cr model.CheckRun, now time.Time) CheckRunViewModel {
	state := checkRunState(cr)
	vm := CheckRunViewModel{
		Name:  cr.Name,
		State: state,
		Icon:  stateIcon(state),
		URL:   cr.HTMLURL,
	}
	if vm.URL == "" {
		vm.URL = cr.DetailsURL
	}

	switch {
	case cr.StartedAt != nil && cr.CompletedAt != nil:
		vm.Timing = FormatDuration(cr.CompletedAt.Sub(*cr.StartedAt))
	case cr.StartedAt != nil:
		vm.Timing = FormatDuration(now.Sub(*cr.StartedAt))
	}
	return vm
}

func checkRunState(cr model.CheckRun) string {
	if cr.Status != model.CheckStatusCompleted {
		return "pending"
	}
	switch cr.Conclusion {
	case "success":
		return "success"
	case model.ConclusionFailure, model.ConclusionCancelled, model.ConclusionTimedOut, "action_required":
		return "failure"
	default:
		return "neutral"
	}
}

func stateIcon(state string) string {
	switch state {
	case "success":
		return IconSuccess
	case "pending":
		return IconPending
	case "failure", "error":
		return IconFailure
	default:
		return IconNeutral
	}
}

func overallIcon(s model.OverallStatus) string {
	return stateIcon(string(s))
}

func overallText(s model.OverallStatus) string {
	switch s {
	case model.OverallFailure:
		return "Build failing"
	case model.OverallPending:
		return "Build running"
	default:
		return "Build passing"
	}
}

func checkCount(n int) string {
	if n == 1 {
		return "1 check"
	}
	return fmt.Sprintf("%d checks", n)
}

// FormatDuration renders d as "Xm Ys", or "Ys" under a minute. Negative
// durations render as "0s".
func FormatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	if mins := secs / 60; mins > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs%60)
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatTimeAgo renders the time elapsed from t to now in its largest whole
// unit: "3d ago", "2h ago", "5m ago" or "12s ago".
func FormatTimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	case d >= time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d >= time.Minute:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	default:
		return fmt.Sprintf("%ds ago", int(d/time.Second))
	}
}
