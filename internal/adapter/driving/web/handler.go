// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"log/slog"
	"net/http"
	"time"

	httphandler "github.com/ericfisherdev/buildstatus/internal/adapter/driving/http"
	"github.com/ericfisherdev/buildstatus/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/buildstatus/internal/application"
)

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	statusSvc *application.BuildStatusService
	now       func() time.Time
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(statusSvc *application.BuildStatusService, logger *slog.Logger) *Handler {
	return &Handler{
		statusSvc: statusSvc,
		now:       time.Now,
		logger:    logger,
	}
}

// BadgeFragment renders the build badge for one branch as an HTML fragment.
// Fetch failures render the fixed-height placeholder rather than an error page.
func (h *Handler) BadgeFragment(w http.ResponseWriter, r *http.Request) {
	ref, err := httphandler.RepoRefFromRequest(r)
	if err != nil {
		http.Error(w, "invalid repository reference", http.StatusBadRequest)
		return
	}

	state := application.PollState{Ref: ref, Phase: application.PhaseReady, LastUpdated: h.now()}
	result, err := h.statusSvc.GetBuildStatus(r.Context(), ref.Owner, ref.Repo, ref.Branch)
	switch {
	case err != nil:
		h.logger.Warn("badge fetch failed", "repo", ref.FullName(), "branch", ref.Branch, "error", err)
		state.Phase = application.PhaseSuspended
		state.LastError = err
	case result.PermissionError:
		state.Phase = application.PhaseSuspended
		state.Result = result
	default:
		state.Result = result
	}

	vm := viewmodel.NewBadge(state, ref, h.now())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := BadgeComponent(vm).Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render badge", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
