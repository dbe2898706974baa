package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/buildstatus/internal/adapter/driven/gitrepo"
	"github.com/ericfisherdev/buildstatus/internal/adapter/driven/statusapi"
	"github.com/ericfisherdev/buildstatus/internal/adapter/driving/terminal"
	"github.com/ericfisherdev/buildstatus/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/buildstatus/internal/application"
	"github.com/ericfisherdev/buildstatus/internal/config"
	"github.com/ericfisherdev/buildstatus/internal/domain/model"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

type options struct {
	server      string
	session     string
	owner       string
	repo        string
	branch      string
	dir         string
	interval    time.Duration
	timeout     time.Duration
	maxFailures int
	once        bool
	verbose     bool
}

func (o options) pollerConfig() application.PollerConfig {
	return application.PollerConfig{
		Interval:    o.interval,
		Timeout:     o.timeout,
		MaxFailures: o.maxFailures,
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "buildbadge",
		Short: "Show the build status badge of a branch in the terminal",
		Long: `buildbadge polls a buildstatus server for the build status of a branch
and redraws a badge whenever it changes. Owner and repository default to
the origin remote of the working tree, and the branch defaults to the one
checked out. A branch switch is picked up at the next interval.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(*cobra.Command, []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			if opts.server == "" {
				opts.server = envOr("BUILDSTATUS_SERVER", "http://127.0.0.1:8080")
			}
			if opts.session == "" {
				opts.session = os.Getenv("BUILDSTATUS_SESSION")
			}
			if opts.session == "" {
				return errors.New("a session token is required: pass --session or set BUILDSTATUS_SESSION")
			}
			if opts.maxFailures < 1 || opts.maxFailures > application.MaxFailuresLimit {
				return fmt.Errorf("--max-failures must be between 1 and %d, got %d", application.MaxFailuresLimit, opts.maxFailures)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			if err := resolveRepo(ctx, &opts); err != nil {
				return err
			}
			source := statusapi.NewClient(opts.server, opts.session)

			if opts.once {
				return runOnce(ctx, source, opts, cmd.OutOrStdout())
			}
			return runWatch(ctx, source, opts, cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "", "buildstatus server URL (default $BUILDSTATUS_SERVER or http://127.0.0.1:8080)")
	f.StringVar(&opts.session, "session", "", "session token (default $BUILDSTATUS_SESSION)")
	f.StringVar(&opts.owner, "owner", "", "repository owner (default: from the origin remote)")
	f.StringVar(&opts.repo, "repo", "", "repository name (default: from the origin remote)")
	f.StringVar(&opts.branch, "branch", "", "branch to track (default: the checked-out branch, followed on switch)")
	f.StringVarP(&opts.dir, "dir", "C", ".", "git working tree used for defaults")
	f.DurationVar(&opts.interval, "interval", application.DefaultPollInterval, "poll interval")
	f.DurationVar(&opts.timeout, "timeout", application.DefaultFetchTimeout, "per-request timeout")
	f.IntVar(&opts.maxFailures, "max-failures", application.DefaultMaxFailures, "failures tolerated before polling stops")
	f.BoolVar(&opts.once, "once", false, "fetch once, print the badge and exit")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log poller activity to stderr")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// resolveRepo fills owner and repo from the origin remote when not given.
func resolveRepo(ctx context.Context, opts *options) error {
	if opts.owner != "" && opts.repo != "" {
		return nil
	}
	owner, repo, err := gitrepo.OriginRepo(ctx, opts.dir)
	if err != nil {
		return fmt.Errorf("detect repository (pass --owner and --repo): %w", err)
	}
	if opts.owner == "" {
		opts.owner = owner
	}
	if opts.repo == "" {
		opts.repo = repo
	}
	return nil
}

func currentBranch(ctx context.Context, opts options) (string, error) {
	if opts.branch != "" {
		return opts.branch, nil
	}
	return gitrepo.CurrentBranch(ctx, opts.dir)
}

func runOnce(ctx context.Context, source driven.StatusSource, opts options, out io.Writer) error {
	branch, err := currentBranch(ctx, opts)
	if err != nil {
		return fmt.Errorf("detect branch (pass --branch): %w", err)
	}

	ref := model.RepoRef{Owner: opts.owner, Repo: opts.repo, Branch: branch}
	state := application.FetchOnce(ctx, source, ref, opts.pollerConfig())
	if err := terminal.Render(out, viewmodel.NewBadge(state, ref, time.Now())); err != nil {
		return err
	}
	if state.LastError != nil {
		return fmt.Errorf("fetch build status: %w", state.LastError)
	}
	return nil
}

func runWatch(ctx context.Context, source driven.StatusSource, opts options, out io.Writer, logger *slog.Logger) error {
	var mu sync.Mutex
	onChange := func(state application.PollState) {
		mu.Lock()
		defer mu.Unlock()
		if err := terminal.Render(out, viewmodel.NewBadge(state, state.Ref, time.Now())); err != nil {
			logger.Error("render badge", "error", err)
		}
	}

	tracker := application.NewTracker(ctx, source, opts.owner, opts.repo, opts.pollerConfig(), onChange, logger)
	defer tracker.Stop()

	followBranch(ctx, tracker, func(ctx context.Context) (string, error) {
		return currentBranch(ctx, opts)
	}, opts.interval, logger)
	return nil
}

// followBranch points tracker at the detected branch now and after every
// interval until ctx is done. A detached HEAD leaves the tracker idle; any
// other detection failure keeps the current branch and its mount state.
func followBranch(
	ctx context.Context,
	tracker *application.Tracker,
	detect func(context.Context) (string, error),
	interval time.Duration,
	logger *slog.Logger,
) {
	check := func() {
		branch, err := detect(ctx)
		switch {
		case errors.Is(err, gitrepo.ErrDetachedHead):
			branch = ""
		case err != nil:
			logger.Debug("branch detection failed, keeping current branch", "branch", tracker.Branch(), "error", err)
			return
		}
		if branch != tracker.Branch() {
			logger.Info("tracking branch", "branch", branch)
		}
		tracker.Track(branch)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
