package model

import (
	"errors"
	"strings"
	"time"
)

// Credential holds a GitHub access token for a scope. Scope is either an
// "owner/repo" full name or a bare "owner" covering every repository of that
// owner.
type Credential struct {
	ID        int64
	Scope     string
	Value     string
	UpdatedAt time.Time
}

// ErrInvalidScope is returned for scopes that are neither "owner" nor "owner/repo".
var ErrInvalidScope = errors.New(`scope must be "owner" or "owner/repo"`)

// ValidateScope checks that scope names an owner or a single repository.
func ValidateScope(scope string) error {
	owner, repo, hasRepo := strings.Cut(scope, "/")
	if owner == "" || strings.ContainsAny(scope, " \t\n") {
		return ErrInvalidScope
	}
	if hasRepo && (repo == "" || strings.Contains(repo, "/")) {
		return ErrInvalidScope
	}
	return nil
}
