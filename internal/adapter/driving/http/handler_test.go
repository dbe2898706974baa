package httphandler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/buildstatus/internal/adapter/driving/http"
	"github.com/ericfisherdev/buildstatus/internal/application"
	"github.com/ericfisherdev/buildstatus/internal/domain/model"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockGitHubClient struct {
	branches  []string
	sha       string
	shaErr    error
	checkRuns []model.CheckRun
	checksErr error
	combined  *model.CombinedStatus
}

func (m *mockGitHubClient) ResolveBranchSHA(_ context.Context, _, _, branch string) (string, error) {
	m.branches = append(m.branches, branch)
	return m.sha, m.shaErr
}

func (m *mockGitHubClient) FetchCheckRuns(_ context.Context, _, _, _ string) ([]model.CheckRun, error) {
	return m.checkRuns, m.checksErr
}

func (m *mockGitHubClient) FetchCombinedStatus(_ context.Context, _, _, _ string) (*model.CombinedStatus, error) {
	if m.combined == nil {
		return &model.CombinedStatus{}, nil
	}
	return m.combined, nil
}

type mockTokenResolver struct {
	token string
	err   error
}

func (m *mockTokenResolver) ResolveToken(_ context.Context, _, _ string) (string, error) {
	return m.token, m.err
}

// --- Test helpers ---

var (
	testSecret  = []byte("test-session-secret")
	testTime    = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	testTimeStr = "2026-02-10T12:00:00Z"
)

const statusPath = "/api/v1/repos/octo/widgets/branches/main/status"

func signSession(t *testing.T, method jwt.SigningMethod, secret []byte, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func setupRouter(client *mockGitHubClient, tokens driven.TokenResolver, development bool) *chi.Mux {
	pool := application.NewClientPool(func(string) (driven.GitHubClient, error) { return client, nil })
	svc := application.NewBuildStatusService(tokens, pool, slog.Default())

	r := httphandler.NewRouter(httphandler.RouterOptions{Logger: slog.Default(), Development: development})
	h := httphandler.NewHandler(svc, development, slog.Default())
	session := httphandler.RequireSession(httphandler.NewSessionVerifier(testSecret), slog.Default())
	httphandler.RegisterAPIRoutes(r, h, session)
	return r
}

func authedRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+signSession(t, jwt.SigningMethodHS256, testSecret, time.Hour))
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

// --- Tests ---

func TestHealth(t *testing.T) {
	router := setupRouter(&mockGitHubClient{}, &mockTokenResolver{token: "t"}, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestGetBuildStatus_Unauthenticated(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "no session", header: ""},
		{name: "wrong secret", header: "Bearer " + mustSign(jwt.SigningMethodHS256, []byte("other"), time.Hour)},
		{name: "expired", header: "Bearer " + mustSign(jwt.SigningMethodHS256, testSecret, -time.Minute)},
		{name: "disallowed algorithm", header: "Bearer " + mustSign(jwt.SigningMethodHS512, testSecret, time.Hour)},
		{name: "not bearer", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage", header: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockGitHubClient{sha: "abc"}
			router := setupRouter(client, &mockTokenResolver{token: "t"}, false)

			req := httptest.NewRequest(http.MethodGet, statusPath, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, rec.Body.String())
			assert.Empty(t, client.branches, "github must not be called")
		})
	}
}

func mustSign(method jwt.SigningMethod, secret []byte, expiresIn time.Duration) string {
	token, err := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}).SignedString(secret)
	if err != nil {
		panic(err)
	}
	return token
}

func TestGetBuildStatus_Success(t *testing.T) {
	completedAt := testTime.Add(90 * time.Second)
	client := &mockGitHubClient{
		sha: "deadbeef",
		checkRuns: []model.CheckRun{
			{ID: 1, Name: "build", Status: "completed", Conclusion: "success", StartedAt: &testTime, CompletedAt: &completedAt, HTMLURL: "https://github.com/octo/widgets/runs/1"},
			{ID: 2, Name: "test", Status: "in_progress", StartedAt: &testTime},
		},
		combined: &model.CombinedStatus{
			State:    "success",
			Statuses: []model.CommitStatus{{ID: 7, State: "success", Context: "ci/legacy", CreatedAt: testTime}},
		},
	}
	router := setupRouter(client, &mockTokenResolver{token: "t"}, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, statusPath))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "deadbeef", body.Data["sha"])
	assert.Equal(t, "pending", body.Data["overallStatus"])
	assert.Equal(t, "pending", body.Data["overallConclusion"])
	assert.Equal(t, float64(3), body.Data["totalCount"])
	assert.NotContains(t, body.Data, "permissionError")

	runs := body.Data["checkRuns"].([]any)
	require.Len(t, runs, 2)
	first := runs[0].(map[string]any)
	assert.Equal(t, "success", first["conclusion"])
	assert.Equal(t, testTimeStr, first["startedAt"])
	assert.Equal(t, "https://github.com/octo/widgets/runs/1", first["htmlUrl"])
	second := runs[1].(map[string]any)
	assert.Nil(t, second["conclusion"])
	assert.Nil(t, second["completedAt"])

	statuses := body.Data["commitStatuses"].([]any)
	require.Len(t, statuses, 1)
	assert.Equal(t, "ci/legacy", statuses[0].(map[string]any)["context"])
	assert.Equal(t, testTimeStr, statuses[0].(map[string]any)["createdAt"])
}

func TestGetBuildStatus_SessionCookie(t *testing.T) {
	router := setupRouter(&mockGitHubClient{sha: "abc"}, &mockTokenResolver{token: "t"}, false)

	req := httptest.NewRequest(http.MethodGet, statusPath, nil)
	req.AddCookie(&http.Cookie{Name: httphandler.SessionCookie, Value: signSession(t, jwt.SigningMethodHS256, testSecret, time.Hour)})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetBuildStatus_DecodesBranch(t *testing.T) {
	tests := []struct {
		name    string
		segment string
		want    string
	}{
		{name: "encoded slash", segment: "feature%2Flogin", want: "feature/login"},
		{name: "literal percent", segment: "100%25", want: "100%"},
		{name: "percent before hex digits", segment: "a%2541", want: "a%41"},
		{name: "slash and percent", segment: "release%2F100%25", want: "release/100%"},
		{name: "plain", segment: "main", want: "main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockGitHubClient{sha: "abc"}
			router := setupRouter(client, &mockTokenResolver{token: "t"}, false)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authedRequest(t, "/api/v1/repos/octo/widgets/branches/"+tt.segment+"/status"))

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, []string{tt.want}, client.branches)
		})
	}
}

func TestGetBuildStatus_Failures(t *testing.T) {
	tests := []struct {
		name        string
		client      *mockGitHubClient
		tokens      *mockTokenResolver
		wantMessage string
	}{
		{
			name:        "branch not found",
			client:      &mockGitHubClient{shaErr: driven.ErrBranchNotFound},
			tokens:      &mockTokenResolver{token: "t"},
			wantMessage: `Branch "main" not found in octo/widgets`,
		},
		{
			name:        "token missing",
			client:      &mockGitHubClient{},
			tokens:      &mockTokenResolver{err: driven.ErrTokenMissing},
			wantMessage: "No access token configured for octo/widgets",
		},
		{
			name:        "upstream failure",
			client:      &mockGitHubClient{sha: "abc", checksErr: assert.AnError},
			tokens:      &mockTokenResolver{token: "t"},
			wantMessage: "Failed to fetch build status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(tt.client, tt.tokens, false)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authedRequest(t, statusPath))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			var body map[string]any
			decodeJSON(t, rec, &body)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.wantMessage, body["message"])
			assert.NotContains(t, body, "data")
			assert.NotContains(t, body, "details", "details are development-only")
		})
	}
}

func TestGetBuildStatus_DevelopmentDetails(t *testing.T) {
	router := setupRouter(&mockGitHubClient{shaErr: driven.ErrBranchNotFound}, &mockTokenResolver{token: "t"}, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, statusPath))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Status  string `json:"status"`
		Details struct {
			Error string `json:"error"`
			Stack string `json:"stack"`
		} `json:"details"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, "error", body.Status)
	assert.Contains(t, body.Details.Error, "branch not found")
	assert.NotEmpty(t, body.Details.Stack)
}

func TestGetBuildStatus_PermissionFlag(t *testing.T) {
	client := &mockGitHubClient{sha: "abc", checksErr: driven.ErrUpstreamForbidden}
	router := setupRouter(client, &mockTokenResolver{token: "t"}, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, statusPath))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]any `json:"data"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, true, body.Data["permissionError"])
	assert.Equal(t, float64(0), body.Data["totalCount"])
}

func TestRecovery(t *testing.T) {
	for _, development := range []bool{false, true} {
		r := httphandler.NewRouter(httphandler.RouterOptions{Logger: slog.Default(), Development: development})
		r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body map[string]any
		decodeJSON(t, rec, &body)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, development, body["details"] != nil)
	}
}

func TestCORS(t *testing.T) {
	r := httphandler.NewRouter(httphandler.RouterOptions{
		Logger:      slog.Default(),
		CORSOrigins: []string{"https://dash.example.com"},
	})
	r.Get("/api/v1/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
