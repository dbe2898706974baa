package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/buildstatus/internal/domain/model"
)

// Errors returned by StatusSource implementations. The poller treats all of
// them the same way but records which one occurred.
var (
	// ErrFetchTimeout indicates the fetch exceeded its per-call timeout.
	ErrFetchTimeout = errors.New("status fetch timed out")

	// ErrFetchFailed indicates a network-level failure reaching the server.
	ErrFetchFailed = errors.New("status fetch failed")

	// ErrUnexpectedStatus indicates a non-2xx response or an envelope not marked success.
	ErrUnexpectedStatus = errors.New("unexpected status response")
)

// StatusSource is the poller's view of the build status endpoint.
type StatusSource interface {
	FetchBuildStatus(ctx context.Context, ref model.RepoRef) (*model.BuildStatusResult, error)
}
