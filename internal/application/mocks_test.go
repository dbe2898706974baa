package application_test

import (
	"context"
	"sync"

	"github.com/ericfisherdev/buildstatus/internal/application"
	"github.com/ericfisherdev/buildstatus/internal/domain/model"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockGitHubClient struct {
	resolveSHA     func(ctx context.Context, owner, repo, branch string) (string, error)
	fetchCheckRuns func(ctx context.Context, owner, repo, sha string) ([]model.CheckRun, error)
	fetchCombined  func(ctx context.Context, owner, repo, sha string) (*model.CombinedStatus, error)
}

func (m *mockGitHubClient) ResolveBranchSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	if m.resolveSHA == nil {
		return "abc123", nil
	}
	return m.resolveSHA(ctx, owner, repo, branch)
}

func (m *mockGitHubClient) FetchCheckRuns(ctx context.Context, owner, repo, sha string) ([]model.CheckRun, error) {
	if m.fetchCheckRuns == nil {
		return nil, nil
	}
	return m.fetchCheckRuns(ctx, owner, repo, sha)
}

func (m *mockGitHubClient) FetchCombinedStatus(ctx context.Context, owner, repo, sha string) (*model.CombinedStatus, error) {
	if m.fetchCombined == nil {
		return &model.CombinedStatus{}, nil
	}
	return m.fetchCombined(ctx, owner, repo, sha)
}

type mockTokenResolver struct {
	token string
	err   error
}

func (m *mockTokenResolver) ResolveToken(_ context.Context, _, _ string) (string, error) {
	return m.token, m.err
}

type mockCredentialStore struct {
	tokens map[string]string
	err    error
	gets   []string
}

func (m *mockCredentialStore) Set(_ context.Context, scope, plaintext string) error {
	m.tokens[scope] = plaintext
	return nil
}

func (m *mockCredentialStore) Get(_ context.Context, scope string) (string, error) {
	m.gets = append(m.gets, scope)
	if m.err != nil {
		return "", m.err
	}
	return m.tokens[scope], nil
}

func (m *mockCredentialStore) List(_ context.Context) ([]model.Credential, error) {
	return nil, nil
}

func (m *mockCredentialStore) Delete(_ context.Context, scope string) error {
	delete(m.tokens, scope)
	return nil
}

// scriptedSource returns the scripted responses in order, repeating the last
// one once the script is exhausted.
type scriptedSource struct {
	mu    sync.Mutex
	steps []sourceStep
	calls int
}

type sourceStep struct {
	result *model.BuildStatusResult
	err    error
	// block makes the call wait for its context to end before answering.
	block bool
}

func (s *scriptedSource) FetchBuildStatus(ctx context.Context, _ model.RepoRef) (*model.BuildStatusResult, error) {
	s.mu.Lock()
	idx := s.calls
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	step := s.steps[idx]
	s.calls++
	s.mu.Unlock()

	if step.block {
		<-ctx.Done()
		return nil, driven.ErrFetchTimeout
	}
	return step.result, step.err
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stateRecorder collects OnChange snapshots.
type stateRecorder struct {
	mu     sync.Mutex
	states []application.PollState
}

func (r *stateRecorder) record(s application.PollState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) phases() []application.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	phases := make([]application.Phase, 0, len(r.states))
	for _, s := range r.states {
		phases = append(phases, s.Phase)
	}
	return phases
}

func (r *stateRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
