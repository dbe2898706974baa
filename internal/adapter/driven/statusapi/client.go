// Package statusapi implements the StatusSource port against the build status
// HTTP endpoint of a buildstatus server.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/buildstatus/internal/domain/model"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StatusSource = (*Client)(nil)

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 512

// Client fetches reduced build status from a buildstatus server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    string
}

// NewClient creates a client for the server at baseURL authenticating with
// the given session token. Per-call deadlines come from the caller's context.
func NewClient(baseURL, session string) *Client {
	return NewClientWithHTTPClient(&http.Client{}, baseURL, session)
}

// NewClientWithHTTPClient creates a client that uses httpClient for requests.
// Used in tests to point at an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, session string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		session:    session,
	}
}

// StatusPath returns the endpoint path for ref with every segment escaped.
func StatusPath(ref model.RepoRef) string {
	return fmt.Sprintf("/api/v1/repos/%s/%s/branches/%s/status",
		url.PathEscape(ref.Owner), url.PathEscape(ref.Repo), url.PathEscape(ref.Branch))
}

// FetchBuildStatus requests the build status of ref. Failures are reported as
// driven.ErrFetchTimeout, driven.ErrFetchFailed or driven.ErrUnexpectedStatus.
func (c *Client) FetchBuildStatus(ctx context.Context, ref model.RepoRef) (*model.BuildStatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+StatusPath(ref), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", driven.ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.session != "" {
		req.Header.Set("Authorization", "Bearer "+c.session)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", driven.ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", driven.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: HTTP %d: %s", driven.ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", driven.ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: decoding response: %w", driven.ErrUnexpectedStatus, err)
	}
	if env.Status != "success" || env.Data == nil {
		return nil, fmt.Errorf("%w: envelope status %q: %s", driven.ErrUnexpectedStatus, env.Status, env.Message)
	}

	return env.Data.toModel(), nil
}

type envelope struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    *resultPayload `json:"data,omitempty"`
}

type resultPayload struct {
	SHA               string                `json:"sha"`
	OverallStatus     string                `json:"overallStatus"`
	OverallConclusion string                `json:"overallConclusion"`
	CheckRuns         []checkRunPayload     `json:"checkRuns"`
	CommitStatuses    []commitStatusPayload `json:"commitStatuses"`
	TotalCount        int                   `json:"totalCount"`
	PermissionError   bool                  `json:"permissionError,omitempty"`
}

type checkRunPayload struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Conclusion  *string    `json:"conclusion"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	DetailsURL  string     `json:"detailsUrl"`
	HTMLURL     string     `json:"htmlUrl"`
}

type commitStatusPayload struct {
	ID          int64     `json:"id"`
	State       string    `json:"state"`
	Description string    `json:"description"`
	Context     string    `json:"context"`
	TargetURL   string    `json:"targetUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p *resultPayload) toModel() *model.BuildStatusResult {
	result := &model.BuildStatusResult{
		SHA:               p.SHA,
		OverallStatus:     model.OverallStatus(p.OverallStatus),
		OverallConclusion: model.OverallStatus(p.OverallConclusion),
		CheckRuns:         make([]model.CheckRun, 0, len(p.CheckRuns)),
		CommitStatuses:    make([]model.CommitStatus, 0, len(p.CommitStatuses)),
		TotalCount:        p.TotalCount,
		PermissionError:   p.PermissionError,
	}

	for _, cr := range p.CheckRuns {
		var conclusion string
		if cr.Conclusion != nil {
			conclusion = *cr.Conclusion
		}
		result.CheckRuns = append(result.CheckRuns, model.CheckRun{
			ID:          cr.ID,
			Name:        cr.Name,
			Status:      cr.Status,
			Conclusion:  conclusion,
			StartedAt:   cr.StartedAt,
			CompletedAt: cr.CompletedAt,
			DetailsURL:  cr.DetailsURL,
			HTMLURL:     cr.HTMLURL,
		})
	}

	for _, cs := range p.CommitStatuses {
		result.CommitStatuses = append(result.CommitStatuses, model.CommitStatus{
			ID:          cs.ID,
			State:       cs.State,
			Description: cs.Description,
			Context:     cs.Context,
			TargetURL:   cs.TargetURL,
			CreatedAt:   cs.CreatedAt,
		})
	}

	return result
}
