// Package httphandler is the JSON API driving adapter.
package httphandler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ericfisherdev/buildstatus/internal/application"
	"github.com/ericfisherdev/buildstatus/internal/domain/model"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	statusSvc   *application.BuildStatusService
	development bool
	logger      *slog.Logger
}

// NewHandler creates a Handler. When development is true, error envelopes
// carry the error chain and a stack trace.
func NewHandler(statusSvc *application.BuildStatusService, development bool, logger *slog.Logger) *Handler {
	return &Handler{
		statusSvc:   statusSvc,
		development: development,
		logger:      logger,
	}
}

// RegisterAPIRoutes registers the JSON API on r. Everything except the health
// check sits behind session.
func RegisterAPIRoutes(r chi.Router, h *Handler, session func(http.Handler) http.Handler) {
	r.Get("/api/v1/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Get("/api/v1/repos/{owner}/{repo}/branches/{branch}/status", h.GetBuildStatus)
	})
}

// RepoRefFromRequest reads owner, repo and branch from the route, undoing
// percent-encoding so "feature%2Fx" addresses branch "feature/x".
//
// chi matches against RawPath when the request carries one and against the
// already decoded Path otherwise, so parameters are unescaped only in the
// first case.
func RepoRefFromRequest(r *http.Request) (model.RepoRef, error) {
	escaped := r.URL.RawPath != ""

	var ref model.RepoRef
	for _, p := range []struct {
		name string
		dst  *string
	}{
		{"owner", &ref.Owner},
		{"repo", &ref.Repo},
		{"branch", &ref.Branch},
	} {
		v := chi.URLParam(r, p.name)
		if escaped {
			var err error
			if v, err = url.PathUnescape(v); err != nil {
				return model.RepoRef{}, fmt.Errorf("decode %s: %w", p.name, err)
			}
		}
		*p.dst = v
	}
	if ref.IsZero() {
		return model.RepoRef{}, errors.New("owner, repo and branch are required")
	}
	return ref, nil
}

// GetBuildStatus returns the reduced build status of a branch head.
func (h *Handler) GetBuildStatus(w http.ResponseWriter, r *http.Request) {
	ref, err := RepoRefFromRequest(r)
	if err != nil {
		h.fail(w, r, "Invalid repository reference", err)
		return
	}

	result, err := h.statusSvc.GetBuildStatus(r.Context(), ref.Owner, ref.Repo, ref.Branch)
	if err != nil {
		h.fail(w, r, failureMessage(ref, err), err)
		return
	}

	writeSuccess(w, toBuildStatusResponse(result))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// fail logs err and writes a 500 error envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.logger.Error("build status request failed",
		"path", r.URL.Path,
		"error", err,
	)

	var details *ErrorDetails
	if h.development {
		details = &ErrorDetails{Error: err.Error(), Stack: string(debug.Stack())}
	}
	writeError(w, http.StatusInternalServerError, message, details)
}

func failureMessage(ref model.RepoRef, err error) string {
	switch {
	case errors.Is(err, driven.ErrTokenMissing):
		return fmt.Sprintf("No access token configured for %s", ref.FullName())
	case errors.Is(err, driven.ErrBranchNotFound):
		return fmt.Sprintf("Branch %q not found in %s", ref.Branch, ref.FullName())
	default:
		return "Failed to fetch build status"
	}
}
