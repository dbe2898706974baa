package viewmodel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/buildstatus/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/buildstatus/internal/application"
	"github.com/ericfisherdev/buildstatus/internal/domain/model"
)

var (
	now     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testRef = model.RepoRef{Owner: "octo", Repo: "widgets", Branch: "main"}
)

func at(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func readyState(result *model.BuildStatusResult) application.PollState {
	return application.PollState{Ref: testRef, Phase: application.PhaseReady, Result: result}
}

func TestNewBadge_Layouts(t *testing.T) {
	tests := []struct {
		name  string
		state application.PollState
		want  viewmodel.BadgeKind
	}{
		{
			name:  "loading",
			state: application.PollState{Phase: application.PhaseLoading},
			want:  viewmodel.BadgeLoading,
		},
		{
			name:  "idle",
			state: application.PollState{Phase: application.PhaseIdle},
			want:  viewmodel.BadgePlaceholder,
		},
		{
			name:  "suspended without data",
			state: application.PollState{Phase: application.PhaseSuspended, Failures: 999},
			want:  viewmodel.BadgePlaceholder,
		},
		{
			name:  "no checks",
			state: readyState(&model.BuildStatusResult{OverallStatus: model.OverallSuccess}),
			want:  viewmodel.BadgeCollapsed,
		},
		{
			name: "permission error",
			state: application.PollState{Phase: application.PhaseSuspended, Result: &model.BuildStatusResult{
				OverallStatus: model.OverallSuccess, PermissionError: true, TotalCount: 0,
			}},
			want: viewmodel.BadgeCollapsed,
		},
		{
			name: "has checks",
			state: readyState(&model.BuildStatusResult{
				OverallStatus: model.OverallSuccess,
				CheckRuns:     []model.CheckRun{{Name: "build", Status: "completed", Conclusion: "success"}},
				TotalCount:    1,
			}),
			want: viewmodel.BadgeStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			badge := viewmodel.NewBadge(tt.state, testRef, now)
			assert.Equal(t, tt.want, badge.Kind)
			assert.Equal(t, "https://github.com/octo/widgets/actions", badge.ActionsURL)
		})
	}
}

func TestNewBadge_Summary(t *testing.T) {
	tests := []struct {
		status   model.OverallStatus
		wantText string
		wantIcon string
	}{
		{model.OverallSuccess, "Build passing", viewmodel.IconSuccess},
		{model.OverallPending, "Build running", viewmodel.IconPending},
		{model.OverallFailure, "Build failing", viewmodel.IconFailure},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			badge := viewmodel.NewBadge(readyState(&model.BuildStatusResult{
				SHA:           "0123456789abcdef",
				OverallStatus: tt.status,
				CheckRuns:     []model.CheckRun{{Name: "build", Status: "completed", StartedAt: at(10 * time.Minute), CompletedAt: at(2 * time.Hour)}},
				TotalCount:    1,
			}), testRef, now)

			assert.Equal(t, tt.wantText, badge.Text)
			assert.Equal(t, tt.wantIcon, badge.Icon)
			assert.Equal(t, string(tt.status), badge.State)
			assert.Equal(t, "0123456", badge.ShortSHA)
			assert.Equal(t, "octo/widgets", badge.RepoFullName)
			assert.False(t, badge.Paused)
		})
	}
}

func TestNewBadge_SubtextUsesMostRecentActivity(t *testing.T) {
	badge := viewmodel.NewBadge(readyState(&model.BuildStatusResult{
		OverallStatus: model.OverallPending,
		CheckRuns: []model.CheckRun{
			{Name: "old", Status: "completed", StartedAt: at(3 * time.Hour), CompletedAt: at(2 * time.Hour)},
			{Name: "running", Status: "in_progress", StartedAt: at(5 * time.Minute)},
		},
		TotalCount: 2,
	}), testRef, now)

	assert.Equal(t, "5m ago", badge.Subtext)
}

func TestNewBadge_SubtextFallsBackToCount(t *testing.T) {
	badge := viewmodel.NewBadge(readyState(&model.BuildStatusResult{
		OverallStatus:  model.OverallSuccess,
		CheckRuns:      []model.CheckRun{{Name: "queued", Status: "queued"}},
		CommitStatuses: []model.CommitStatus{{Context: "ci/legacy", State: "success", CreatedAt: now}},
		TotalCount:     2,
	}), testRef, now)

	assert.Equal(t, "2 checks", badge.Subtext)
}

func TestNewBadge_Overflow(t *testing.T) {
	var runs []model.CheckRun
	for i := range 7 {
		runs = append(runs, model.CheckRun{ID: int64(i), Name: "job", Status: "completed", Conclusion: "success"})
	}
	var statuses []model.CommitStatus
	for i := range 4 {
		statuses = append(statuses, model.CommitStatus{ID: int64(i), Context: "ci", State: "success", CreatedAt: now})
	}

	badge := viewmodel.NewBadge(readyState(&model.BuildStatusResult{
		OverallStatus:  model.OverallSuccess,
		CheckRuns:      runs,
		CommitStatuses: statuses,
		TotalCount:     11,
	}), testRef, now)

	assert.Len(t, badge.CheckRuns, viewmodel.MaxCheckRuns)
	assert.Equal(t, 2, badge.MoreCheckRuns)
	assert.Len(t, badge.Statuses, viewmodel.MaxStatuses)
	assert.Equal(t, 1, badge.MoreStatuses)
}

func TestNewBadge_Rows(t *testing.T) {
	badge := viewmodel.NewBadge(readyState(&model.BuildStatusResult{
		OverallStatus: model.OverallFailure,
		CheckRuns: []model.CheckRun{
			{Name: "build", Status: "completed", Conclusion: "failure", StartedAt: at(5 * time.Minute), CompletedAt: at(3*time.Minute + 30*time.Second), HTMLURL: "https://github.com/octo/widgets/runs/1"},
			{Name: "test", Status: "in_progress", StartedAt: at(45 * time.Second), DetailsURL: "https://ci.example.com/2"},
			{Name: "docs", Status: "completed", Conclusion: "skipped"},
		},
		CommitStatuses: []model.CommitStatus{
			{Context: "ci/legacy", State: "error", Description: "boom", TargetURL: "https://ci.example.com/s", CreatedAt: *at(26 * time.Hour)},
		},
		TotalCount: 4,
	}), testRef, now)

	require.Len(t, badge.CheckRuns, 3)
	assert.Equal(t, viewmodel.CheckRunViewModel{
		Name: "build", State: "failure", Icon: viewmodel.IconFailure, Timing: "1m 30s", URL: "https://github.com/octo/widgets/runs/1",
	}, badge.CheckRuns[0])
	assert.Equal(t, "pending", badge.CheckRuns[1].State)
	assert.Equal(t, "45s", badge.CheckRuns[1].Timing)
	assert.Equal(t, "https://ci.example.com/2", badge.CheckRuns[1].URL)
	assert.Equal(t, "neutral", badge.CheckRuns[2].State)
	assert.Equal(t, "", badge.CheckRuns[2].Timing)

	require.Len(t, badge.Statuses, 1)
	assert.Equal(t, viewmodel.IconFailure, badge.Statuses[0].Icon)
	assert.Equal(t, "1d ago", badge.Statuses[0].TimeAgo)
}

func TestNewBadge_SuspendedKeepsLastResult(t *testing.T) {
	state := application.PollState{
		Phase:    application.PhaseSuspended,
		Failures: 999,
		Result: &model.BuildStatusResult{
			OverallStatus: model.OverallSuccess,
			CheckRuns:     []model.CheckRun{{Name: "build", Status: "completed", Conclusion: "success"}},
			TotalCount:    1,
		},
	}

	badge := viewmodel.NewBadge(state, testRef, now)

	assert.Equal(t, viewmodel.BadgeStatus, badge.Kind)
	assert.True(t, badge.Paused)
	assert.Equal(t, "Build passing", badge.Text)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{59*time.Second + 900*time.Millisecond, "59s"},
		{time.Minute, "1m 0s"},
		{12*time.Minute + 5*time.Second, "12m 5s"},
		{2 * time.Hour, "120m 0s"},
		{-5 * time.Second, "0s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, viewmodel.FormatDuration(tt.in), tt.in.String())
	}
}

func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "0s ago"},
		{30 * time.Second, "30s ago"},
		{90 * time.Second, "1m ago"},
		{59 * time.Minute, "59m ago"},
		{3*time.Hour + 59*time.Minute, "3h ago"},
		{49 * time.Hour, "2d ago"},
		{-time.Minute, "0s ago"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, viewmodel.FormatTimeAgo(now.Add(-tt.ago), now), tt.ago.String())
	}
}
