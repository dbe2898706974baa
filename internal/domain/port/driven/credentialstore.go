package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/buildstatus/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// BUILDSTATUS_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set BUILDSTATUS_SECRET_KEY")

// CredentialStore defines the driven port for encrypted access token persistence.
// The adapter layer is responsible for encryption/decryption; this interface
// operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// Set stores or replaces the token for the given scope ("owner/repo" or "owner").
	Set(ctx context.Context, scope, plaintext string) error

	// Get retrieves the plaintext token for the given scope.
	// Returns ("", nil) if no credential exists for that scope.
	Get(ctx context.Context, scope string) (string, error)

	// List returns all stored credentials. Values are decrypted plaintext.
	List(ctx context.Context) ([]model.Credential, error)

	// Delete removes the credential for the given scope.
	Delete(ctx context.Context, scope string) error
}
