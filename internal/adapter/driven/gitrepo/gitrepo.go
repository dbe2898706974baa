// Package gitrepo reads the checked-out branch and origin remote of a local
// git working tree by shelling out to git.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

var (
	// ErrNotGitRepo is returned when git cannot read HEAD in the directory,
	// either because it is not a working tree or because git failed.
	ErrNotGitRepo = errors.New("not inside a git repository")
	// ErrDetachedHead is returned when HEAD points at a commit rather than a branch.
	ErrDetachedHead = errors.New("HEAD is detached")
	// ErrNoOrigin is returned when the working tree has no origin remote URL.
	ErrNoOrigin = errors.New("no origin remote configured")
	// ErrUnknownRemote is returned when the origin URL does not end in owner/repo.
	ErrUnknownRemote = errors.New("origin is not a recognizable owner/repo remote")
)

// CurrentBranch returns the branch checked out in dir.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := gitOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", ErrNotGitRepo
	}
	if out == "HEAD" {
		return "", ErrDetachedHead
	}
	return out, nil
}

// OriginRepo returns the owner and repository name of the origin remote.
func OriginRepo(ctx context.Context, dir string) (owner, repo string, err error) {
	raw, err := gitOutput(ctx, dir, "config", "--get", "remote.origin.url")
	if err != nil || raw == "" {
		return "", "", ErrNoOrigin
	}
	return ParseRemoteURL(raw)
}

// ParseRemoteURL extracts owner and repo from an scp-style
// ("git@github.com:owner/repo.git") or URL-style remote.
func ParseRemoteURL(raw string) (owner, repo string, err error) {
	raw = strings.TrimSpace(raw)

	var path string
	if strings.Contains(raw, "://") {
		u, perr := url.Parse(raw)
		if perr != nil {
			return "", "", fmt.Errorf("parse remote %q: %w", raw, perr)
		}
		path = u.Path
	} else if _, after, ok := strings.Cut(raw, ":"); ok {
		path = after
	} else {
		return "", "", ErrUnknownRemote
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return "", "", ErrUnknownRemote
	}
	owner, repo = parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || repo == "" {
		return "", "", ErrUnknownRemote
	}
	return owner, repo, nil
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}
