package driven

import (
	"context"
	"errors"
)

// ErrTokenMissing is returned when no access token can be resolved for a repository.
var ErrTokenMissing = errors.New("no access token configured for repository")

// TokenResolver resolves the GitHub access token used for a repository.
type TokenResolver interface {
	// ResolveToken returns the token for owner/repo or ErrTokenMissing.
	ResolveToken(ctx context.Context, owner, repo string) (string, error)
}
