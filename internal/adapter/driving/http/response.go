package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/buildstatus/internal/domain/model"
)

// Envelope status values.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error envelope is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeSuccess writes a 200 success envelope carrying data.
func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, successResponse{Status: statusSuccess, Data: data})
}

// writeError writes an error envelope. details is omitted when nil.
func writeError(w http.ResponseWriter, status int, message string, details *ErrorDetails) {
	writeJSON(w, status, errorResponse{Status: statusError, Message: message, Details: details})
}

// successResponse is the envelope of every successful API response.
type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// errorResponse is the envelope of every failed API response.
type errorResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails carries diagnostics in development mode only.
type ErrorDetails struct {
	Error string `json:"error"`
	Stack string `json:"stack,omitempty"`
}

// BuildStatusResponse is the JSON representation of a reduced build status.
type BuildStatusResponse struct {
	SHA               string                 `json:"sha"`
	OverallStatus     string                 `json:"overallStatus"`
	OverallConclusion string                 `json:"overallConclusion"`
	CheckRuns         []CheckRunResponse     `json:"checkRuns"`
	CommitStatuses    []CommitStatusResponse `json:"commitStatuses"`
	TotalCount        int                    `json:"totalCount"`
	PermissionError   bool                   `json:"permissionError,omitempty"`
}

// CheckRunResponse is the JSON representation of a single check run.
// Conclusion and timestamps are null until GitHub reports them.
type CheckRunResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Conclusion  *string `json:"conclusion"`
	StartedAt   *string `json:"startedAt"`
	CompletedAt *string `json:"completedAt"`
	DetailsURL  string  `json:"detailsUrl"`
	HTMLURL     string  `json:"htmlUrl"`
}

// CommitStatusResponse is the JSON representation of a single commit status.
type CommitStatusResponse struct {
	ID          int64  `json:"id"`
	State       string `json:"state"`
	Description string `json:"description"`
	Context     string `json:"context"`
	TargetURL   string `json:"targetUrl"`
	CreatedAt   string `json:"createdAt"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toBuildStatusResponse(r *model.BuildStatusResult) BuildStatusResponse {
	resp := BuildStatusResponse{
		SHA:               r.SHA,
		OverallStatus:     string(r.OverallStatus),
		OverallConclusion: string(r.OverallConclusion),
		CheckRuns:         make([]CheckRunResponse, 0, len(r.CheckRuns)),
		CommitStatuses:    make([]CommitStatusResponse, 0, len(r.CommitStatuses)),
		TotalCount:        r.TotalCount,
		PermissionError:   r.PermissionError,
	}

	for _, cr := range r.CheckRuns {
		resp.CheckRuns = append(resp.CheckRuns, toCheckRunResponse(cr))
	}
	for _, cs := range r.CommitStatuses {
		resp.CommitStatuses = append(resp.CommitStatuses, CommitStatusResponse{
			ID:          cs.ID,
			State:       cs.State,
			Description: cs.Description,
			Context:     cs.Context,
			TargetURL:   cs.TargetURL,
			CreatedAt:   cs.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return resp
}

func toCheckRunResponse(cr model.CheckRun) CheckRunResponse {
	resp := CheckRunResponse{
		ID:          cr.ID,
		Name:        cr.Name,
		Status:      cr.Status,
		StartedAt:   formatTimePtr(cr.StartedAt),
		CompletedAt: formatTimePtr(cr.CompletedAt),
		DetailsURL:  cr.DetailsURL,
		HTMLURL:     cr.HTMLURL,
	}
	if cr.Conclusion != "" {
		conclusion := cr.Conclusion
		resp.Conclusion = &conclusion
	}
	return resp
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
