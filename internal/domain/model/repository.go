package model

import (
	"fmt"
	"net/url"
)

// RepoRef identifies the branch whose build status is tracked.
type RepoRef struct {
	Owner  string
	Repo   string
	Branch string
}

// FullName returns the "owner/repo" form of the reference.
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Repo
}

// ActionsURL returns the github.com Actions page for the repository.
func (r RepoRef) ActionsURL() string {
	return fmt.Sprintf("https://github.com/%s/%s/actions", url.PathEscape(r.Owner), url.PathEscape(r.Repo))
}

// IsZero reports whether no branch is configured.
func (r RepoRef) IsZero() bool {
	return r.Owner == "" || r.Repo == "" || r.Branch == ""
}
