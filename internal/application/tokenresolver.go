package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenResolver = (*StoredTokenResolver)(nil)

// StoredTokenResolver looks up access tokens in the credential store, most
// specific scope first, and falls back to a process-wide token.
type StoredTokenResolver struct {
	store    driven.CredentialStore
	fallback string
	logger   *slog.Logger
}

// NewStoredTokenResolver creates a resolver. store may be nil when token
// storage is disabled; fallback may be empty.
func NewStoredTokenResolver(store driven.CredentialStore, fallback string, logger *slog.Logger) *StoredTokenResolver {
	return &StoredTokenResolver{store: store, fallback: fallback, logger: logger}
}

// ResolveToken returns the token stored for "owner/repo", then for "owner",
// then the fallback. Returns driven.ErrTokenMissing when none is set.
func (r *StoredTokenResolver) ResolveToken(ctx context.Context, owner, repo string) (string, error) {
	if r.store != nil {
		for _, scope := range []string{owner + "/" + repo, owner} {
			token, err := r.store.Get(ctx, scope)
			if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
				r.logger.Debug("token store disabled, using fallback token")
				break
			}
			if err != nil {
				return "", fmt.Errorf("lookup token for %s: %w", scope, err)
			}
			if token != "" {
				return token, nil
			}
		}
	}

	if r.fallback != "" {
		return r.fallback, nil
	}
	return "", fmt.Errorf("%s/%s: %w", owner, repo, driven.ErrTokenMissing)
}
