package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/buildstatus/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/buildstatus/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/buildstatus/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/buildstatus/internal/adapter/driving/web"
	"github.com/ericfisherdev/buildstatus/internal/application"
	"github.com/ericfisherdev/buildstatus/internal/config"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "buildstatus",
		Short: "Serve aggregated GitHub build status for branch heads",
		Long: `buildstatus resolves the head commit of a branch, reads its check runs
and combined commit status from GitHub and reduces them to a single
success, pending or failure verdict. Without a subcommand it runs the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadDotEnv()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})
	root.AddCommand(newTokenCmd())

	return root
}

func serve(parent context.Context) error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"env", cfg.Env,
		"db_path", cfg.DBPath,
		"token_store", cfg.SecretKey != nil,
		"fallback_token", cfg.HasFallbackToken(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters and services.
	var store driven.CredentialStore
	if cfg.SecretKey != nil {
		store = sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	} else {
		slog.Info("BUILDSTATUS_SECRET_KEY not set, stored tokens disabled")
	}
	if store == nil && !cfg.HasFallbackToken() {
		slog.Warn("no access token source configured, every status request will fail")
	}

	tokens := application.NewStoredTokenResolver(store, cfg.GitHubToken, logger)
	pool := application.NewClientPool(githubadapter.NewFactory(cfg.GitHubAPIURL))
	statusSvc := application.NewBuildStatusService(tokens, pool, logger)

	// 6. Build the router and register API and GUI routes.
	router := httphandler.NewRouter(httphandler.RouterOptions{
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		Development: cfg.IsDevelopment(),
	})
	session := httphandler.RequireSession(httphandler.NewSessionVerifier(cfg.SessionSecret), logger)
	httphandler.RegisterAPIRoutes(router, httphandler.NewHandler(statusSvc, cfg.IsDevelopment(), logger), session)
	webhandler.RegisterRoutes(router, webhandler.NewHandler(statusSvc, logger), session)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 7. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// 8. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
