// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/buildstatus/internal/domain/model"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// checkRunsPageSize is the single page of check runs requested per commit.
// Further pages are never followed.
const checkRunsPageSize = 100

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with token auth)
//
// apiURL selects a GitHub Enterprise Server API root; empty means api.github.com.
func NewClient(token, apiURL string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	if apiURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise URL %q: %w", apiURL, err)
		}
	}

	return &Client{gh: client}, nil
}

// NewFactory returns a driven.GitHubClientFactory producing clients for apiURL.
func NewFactory(apiURL string) driven.GitHubClientFactory {
	return func(token string) (driven.GitHubClient, error) {
		return NewClient(token, apiURL)
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// ResolveBranchSHA returns the head commit SHA of the given branch.
// A 404 from GitHub (missing branch or no read access) maps to driven.ErrBranchNotFound.
func (c *Client) ResolveBranchSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	b, resp, err := c.gh.Repositories.GetBranch(ctx, owner, repo, branch, 1)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("resolving branch %q of %s/%s: %w", branch, owner, repo, driven.ErrBranchNotFound)
		}
		return "", fmt.Errorf("resolving branch %q of %s/%s: %w", branch, owner, repo, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/branches", 0, 1)

	sha := b.GetCommit().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("resolving branch %q of %s/%s: %w", branch, owner, repo, driven.ErrBranchNotFound)
	}
	return sha, nil
}

// FetchCheckRuns retrieves the first page of check runs for the given commit.
// Only one page of up to 100 runs is requested.
func (c *Client) FetchCheckRuns(ctx context.Context, owner, repo, sha string) ([]model.CheckRun, error) {
	opts := &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: checkRunsPageSize},
	}

	result, resp, err := c.gh.Checks.ListCheckRunsForRef(ctx, owner, repo, sha, opts)
	if err != nil {
		return nil, classifyError(resp, fmt.Errorf("listing check runs for %s/%s@%s: %w", owner, repo, sha, err))
	}

	logRateLimit(resp, owner+"/"+repo+"/check-runs", 1, len(result.CheckRuns))

	runs := make([]model.CheckRun, 0, len(result.CheckRuns))
	for _, cr := range result.CheckRuns {
		runs = append(runs, mapCheckRun(cr))
	}

	return runs, nil
}

// FetchCombinedStatus returns the combined commit status for the given commit.
// The state is passed through as GitHub reports it, including "pending" for a
// commit without any statuses.
func (c *Client) FetchCombinedStatus(ctx context.Context, owner, repo, sha string) (*model.CombinedStatus, error) {
	cs, resp, err := c.gh.Repositories.GetCombinedStatus(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, classifyError(resp, fmt.Errorf("fetching combined status for %s/%s@%s: %w", owner, repo, sha, err))
	}

	logRateLimit(resp, owner+"/"+repo+"/status", 0, len(cs.Statuses))

	return mapCombinedStatus(cs), nil
}

// classifyError tags a permission refusal with driven.ErrUpstreamForbidden.
// Rate limit responses are also 403s and are left as ordinary failures.
func classifyError(resp *gh.Response, err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return err
	}

	if resp != nil && resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", driven.ErrUpstreamForbidden, err)
	}
	return err
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapCheckRun converts a go-github CheckRun to a domain model CheckRun.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapCheckRun(cr *gh.CheckRun) model.CheckRun {
	return model.CheckRun{
		ID:          cr.GetID(),
		Name:        cr.GetName(),
		Status:      cr.GetStatus(),
		Conclusion:  cr.GetConclusion(),
		StartedAt:   timestampPtr(cr.StartedAt),
		CompletedAt: timestampPtr(cr.CompletedAt),
		DetailsURL:  cr.GetDetailsURL(),
		HTMLURL:     cr.GetHTMLURL(),
	}
}

// mapCombinedStatus converts a go-github CombinedStatus to a domain model CombinedStatus.
func mapCombinedStatus(cs *gh.CombinedStatus) *model.CombinedStatus {
	statuses := make([]model.CommitStatus, 0, len(cs.Statuses))
	for _, s := range cs.Statuses {
		statuses = append(statuses, model.CommitStatus{
			ID:          s.GetID(),
			State:       s.GetState(),
			Description: s.GetDescription(),
			Context:     s.GetContext(),
			TargetURL:   s.GetTargetURL(),
			CreatedAt:   s.GetCreatedAt().Time,
		})
	}

	return &model.CombinedStatus{
		State:    cs.GetState(),
		Statuses: statuses,
	}
}

func timestampPtr(ts *gh.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.UTC()
	return &t
}
