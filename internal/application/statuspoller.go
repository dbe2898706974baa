package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/buildstatus/internal/domain/model"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

// Poller defaults.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxFailures  = 3
)

// failureSentinel is written to PollState.Failures on any failed fetch.
// MaxFailures is capped at this value so a single failure suspends the mount.
const failureSentinel = 999

// MaxFailuresLimit is the largest MaxFailures a PollerConfig honours.
const MaxFailuresLimit = failureSentinel

// Phase is the lifecycle position of a poller mount.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseSuspended
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// PollState is an immutable snapshot of a poller mount.
type PollState struct {
	Ref         model.RepoRef
	Phase       Phase
	Result      *model.BuildStatusResult // Most recent successful result; nil until one arrives.
	Failures    int
	LastError   error
	LastUpdated time.Time // Time of the most recent successful fetch.
}

// PollerConfig tunes the poll schedule. Zero values select the defaults.
type PollerConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	MaxFailures int
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultFetchTimeout
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = DefaultMaxFailures
	}
	c.MaxFailures = min(c.MaxFailures, MaxFailuresLimit)
	return c
}

// applyFetch returns the state that follows a fetch outcome.
func applyFetch(s PollState, result *model.BuildStatusResult, err error, now time.Time, maxFailures int) PollState {
	if err != nil {
		s.Failures = failureSentinel
		s.LastError = err
		if s.Failures >= maxFailures {
			s.Phase = PhaseSuspended
		}
		return s
	}

	s.Result = result
	s.Failures = 0
	s.LastError = nil
	s.LastUpdated = now
	s.Phase = PhaseReady
	if result.PermissionError {
		s.Phase = PhaseSuspended
	}
	return s
}

// FetchOnce performs a single bounded fetch for ref and returns the resulting
// state without scheduling further polls.
func FetchOnce(ctx context.Context, source driven.StatusSource, ref model.RepoRef, cfg PollerConfig) PollState {
	cfg = cfg.withDefaults()
	state := PollState{Ref: ref, Phase: PhaseLoading}

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	result, err := source.FetchBuildStatus(fetchCtx, ref)

	return applyFetch(state, result, err, time.Now(), cfg.MaxFailures)
}

// Tracker owns the poller mount of one repository. Tracking a different
// branch tears the current mount down and starts a fresh one.
//
// OnChange is invoked from the mount goroutine with every new snapshot. It
// must not call Track or Stop.
type Tracker struct {
	parent   context.Context
	owner    string
	repo     string
	source   driven.StatusSource
	cfg      PollerConfig
	onChange func(PollState)
	logger   *slog.Logger

	mu      sync.Mutex
	current *mount
	idle    PollState
}

// NewTracker creates a tracker for owner/repo. Every mount it starts is bound
// to ctx; cancelling ctx stops polling just like Stop.
func NewTracker(
	ctx context.Context,
	source driven.StatusSource,
	owner, repo string,
	cfg PollerConfig,
	onChange func(PollState),
	logger *slog.Logger,
) *Tracker {
	if onChange == nil {
		onChange = func(PollState) {}
	}
	return &Tracker{
		parent:   ctx,
		owner:    owner,
		repo:     repo,
		source:   source,
		cfg:      cfg.withDefaults(),
		onChange: onChange,
		logger:   logger,
		idle:     PollState{Ref: model.RepoRef{Owner: owner, Repo: repo}, Phase: PhaseIdle},
	}
}

// Track points the tracker at branch. Tracking the branch that is already
// mounted is a no-op, which keeps a suspended mount suspended. An empty
// branch leaves the tracker idle.
func (t *Tracker) Track(branch string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil && t.current.ref.Branch == branch {
		return
	}
	if t.current == nil && branch == "" {
		return
	}

	t.teardownLocked()

	ref := model.RepoRef{Owner: t.owner, Repo: t.repo, Branch: branch}
	if ref.IsZero() {
		t.idle = PollState{Ref: ref, Phase: PhaseIdle}
		t.onChange(t.idle)
		return
	}

	t.logger.Debug("mounting status poller", "repo", ref.FullName(), "branch", branch)
	t.current = startMount(t.parent, ref, t.source, t.cfg, t.onChange, t.logger)
}

// Snapshot returns the state of the current mount.
func (t *Tracker) Snapshot() PollState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return t.idle
	}
	return t.current.snapshot()
}

// Branch returns the branch of the current mount, or "" when idle.
func (t *Tracker) Branch() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return ""
	}
	return t.current.ref.Branch
}

// Stop tears down the current mount. It blocks until the mount goroutine
// has exited, after which no further OnChange calls are made.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()
}

func (t *Tracker) teardownLocked() {
	if t.current == nil {
		return
	}
	t.current.teardown()
	t.idle = PollState{Ref: model.RepoRef{Owner: t.owner, Repo: t.repo}, Phase: PhaseIdle}
	t.current = nil
}

// mount polls a single branch until it is suspended or torn down. Its
// context is the liveness token: every state change checks it first so
// results arriving after teardown are dropped.
type mount struct {
	ref      model.RepoRef
	source   driven.StatusSource
	cfg      PollerConfig
	onChange func(PollState)
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state PollState
}

func startMount(
	parent context.Context,
	ref model.RepoRef,
	source driven.StatusSource,
	cfg PollerConfig,
	onChange func(PollState),
	logger *slog.Logger,
) *mount {
	ctx, cancel := context.WithCancel(parent)
	m := &mount{
		ref:      ref,
		source:   source,
		cfg:      cfg,
		onChange: onChange,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    PollState{Ref: ref, Phase: PhaseIdle},
	}
	go m.run()
	return m
}

func (m *mount) run() {
	defer close(m.done)

	// The first tick is delivered immediately.
	ticker := backoff.NewTicker(backoff.NewConstantBackOff(m.cfg.Interval))
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			if !m.poll() {
				return
			}
		}
	}
}

// poll performs one fetch and reports whether polling should continue.
func (m *mount) poll() bool {
	if !m.update(func(s PollState) PollState {
		if s.Result == nil {
			s.Phase = PhaseLoading
		}
		return s
	}) {
		return false
	}

	fetchCtx, cancel := context.WithTimeout(m.ctx, m.cfg.Timeout)
	result, err := m.source.FetchBuildStatus(fetchCtx, m.ref)
	cancel()

	if err != nil && m.ctx.Err() == nil {
		m.logger.Warn("build status fetch failed, polling suspended",
			"repo", m.ref.FullName(), "branch", m.ref.Branch, "error", err)
	}

	var next PollState
	if !m.update(func(s PollState) PollState {
		next = applyFetch(s, result, err, time.Now(), m.cfg.MaxFailures)
		return next
	}) {
		return false
	}

	return next.Phase != PhaseSuspended
}

// update applies fn unless the mount has been torn down and notifies the
// observer. It reports whether the change was applied.
func (m *mount) update(fn func(PollState) PollState) bool {
	if m.ctx.Err() != nil {
		return false
	}

	m.mu.Lock()
	m.state = fn(m.state)
	snap := m.state
	m.mu.Unlock()

	m.onChange(snap)
	return true
}

func (m *mount) snapshot() PollState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mount) teardown() {
	m.cancel()
	<-m.done
}
