// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/buildstatus/internal/domain/model"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

// BuildStatusService aggregates check runs and commit statuses of a branch
// head into a single BuildStatusResult.
type BuildStatusService struct {
	tokens driven.TokenResolver
	pool   *ClientPool
	logger *slog.Logger
}

// NewBuildStatusService creates a new BuildStatusService.
func NewBuildStatusService(tokens driven.TokenResolver, pool *ClientPool, logger *slog.Logger) *BuildStatusService {
	return &BuildStatusService{
		tokens: tokens,
		pool:   pool,
		logger: logger,
	}
}

// GetBuildStatus resolves the head commit of owner/repo@branch, fetches its
// check runs and combined status concurrently and reduces them. Upstream
// errors are returned wrapped; nothing is retried.
func (s *BuildStatusService) GetBuildStatus(ctx context.Context, owner, repo, branch string) (*model.BuildStatusResult, error) {
	start := time.Now()

	token, err := s.tokens.ResolveToken(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}

	client, err := s.pool.Get(token)
	if err != nil {
		return nil, err
	}

	sha, err := client.ResolveBranchSHA(ctx, owner, repo, branch)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branch, err)
	}

	var (
		checkRuns []model.CheckRun
		combined  *model.CombinedStatus
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runs, err := client.FetchCheckRuns(gctx, owner, repo, sha)
		if err != nil {
			return fmt.Errorf("fetch check runs: %w", err)
		}
		checkRuns = runs
		return nil
	})
	g.Go(func() error {
		cs, err := client.FetchCombinedStatus(gctx, owner, repo, sha)
		if err != nil {
			return fmt.Errorf("fetch combined status: %w", err)
		}
		combined = cs
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, driven.ErrUpstreamForbidden) {
			s.logger.Warn("token cannot read checks or statuses",
				"repo", owner+"/"+repo, "branch", branch, "error", err)
			return permissionDenied(sha), nil
		}
		return nil, err
	}

	var (
		state    string
		statuses []model.CommitStatus
	)
	if combined != nil {
		state = combined.State
		statuses = combined.Statuses
	}
	if checkRuns == nil {
		checkRuns = []model.CheckRun{}
	}
	if statuses == nil {
		statuses = []model.CommitStatus{}
	}

	overall, conclusion := ReduceStatus(checkRuns, state)

	s.logger.Debug("build status reduced",
		"repo", owner+"/"+repo,
		"branch", branch,
		"sha", sha,
		"status", overall,
		"check_runs", len(checkRuns),
		"statuses", len(statuses),
		"duration", time.Since(start),
	)

	return &model.BuildStatusResult{
		SHA:               sha,
		OverallStatus:     overall,
		OverallConclusion: conclusion,
		CheckRuns:         checkRuns,
		CommitStatuses:    statuses,
		TotalCount:        len(checkRuns) + len(statuses),
	}, nil
}

func permissionDenied(sha string) *model.BuildStatusResult {
	return &model.BuildStatusResult{
		SHA:               sha,
		OverallStatus:     model.OverallSuccess,
		OverallConclusion: model.OverallSuccess,
		CheckRuns:         []model.CheckRun{},
		CommitStatuses:    []model.CommitStatus{},
		PermissionError:   true,
	}
}
