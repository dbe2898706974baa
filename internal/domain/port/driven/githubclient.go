// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/buildstatus/internal/domain/model"
)

// Sentinel errors returned by GitHubClient implementations.
var (
	// ErrBranchNotFound indicates the branch does not exist or the token cannot read the repository.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrUpstreamForbidden indicates GitHub refused the request for lack of permission
	// (HTTP 403 that is not a rate limit).
	ErrUpstreamForbidden = errors.New("github permission denied")
)

// GitHubClient defines the driven port for the read-only GitHub calls the
// status aggregator needs. None of these calls has upstream side effects.
type GitHubClient interface {
	// ResolveBranchSHA returns the head commit SHA of the branch.
	// Returns ErrBranchNotFound if GitHub answers 404.
	ResolveBranchSHA(ctx context.Context, owner, repo, branch string) (string, error)

	// FetchCheckRuns returns the first page (up to 100) of check runs for the commit.
	FetchCheckRuns(ctx context.Context, owner, repo, sha string) ([]model.CheckRun, error)

	// FetchCombinedStatus returns the combined commit status for the commit.
	FetchCombinedStatus(ctx context.Context, owner, repo, sha string) (*model.CombinedStatus, error)
}

// GitHubClientFactory builds a GitHubClient authenticated with the given token.
type GitHubClientFactory func(token string) (GitHubClient, error)
