package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CaseCollector/internal/casestore"
	"CaseCollector/internal/domain"
	"CaseCollector/internal/metrics"
	"CaseCollector/internal/usecase"
)

type fakeService struct {
	running   bool
	lastReq   domain.RunRequest
	pending   []domain.PersistedCase
	approved  []string
	rejected  []string
	reason    string
	threshold float64
	logs      []domain.RunSummary
	statsErr  error
}

func (f *fakeService) Status(context.Context) (usecase.Status, error) {
	return usecase.Status{Enabled: true, IsRunning: f.running, RegisteredSources: []string{"kci"}}, nil
}

func (f *fakeService) Run(_ context.Context, req domain.RunRequest) domain.RunSummary {
	f.lastReq = req
	if f.running {
		return domain.RunSummary{Status: domain.RunRejected, Errors: []string{domain.ErrAlreadyRunning.Error()}}
	}
	return domain.RunSummary{ID: "COL-1", Status: domain.RunCompleted, Errors: []string{}}
}

func (f *fakeService) RunAsync(_ context.Context, req domain.RunRequest) (string, error) {
	f.lastReq = req
	if f.running {
		return "", domain.ErrAlreadyRunning
	}
	return "COL-2", nil
}

func (f *fakeService) ListPending(_ context.Context, limit, offset int) ([]domain.PersistedCase, int, error) {
	end := min(offset+limit, len(f.pending))
	if offset >= len(f.pending) {
		return nil, len(f.pending), nil
	}
	return f.pending[offset:end], len(f.pending), nil
}

func (f *fakeService) Approve(_ context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, domain.ErrInvalidInput
	}
	f.approved = ids
	return len(ids), nil
}

func (f *fakeService) Reject(_ context.Context, ids []string, reason string) (int, error) {
	f.rejected, f.reason = ids, reason
	return len(ids), nil
}

func (f *fakeService) AutoApprove(_ context.Context, threshold float64) (int, float64, error) {
	if threshold == 0 {
		threshold = 0.9
	}
	f.threshold = threshold
	return 3, threshold, nil
}

func (f *fakeService) Logs(_ context.Context, limit int) ([]domain.RunSummary, error) {
	if limit < len(f.logs) {
		return f.logs[len(f.logs)-limit:], nil
	}
	return f.logs, nil
}

func (f *fakeService) Stats(context.Context) (casestore.Stats, error) {
	if f.statsErr != nil {
		return casestore.Stats{}, f.statsErr
	}
	return casestore.Stats{TotalCases: 4, PendingCases: 2}, nil
}

func newTestRouter(svc Service) http.Handler {
	reg := prometheus.NewRegistry()
	return NewRouter(svc, metrics.New(reg), reg, nil)
}

func serve(t *testing.T, svc Service, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return serveWith(t, newTestRouter(svc), method, target, body)
}

func serveWith(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))

	var decoded map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded))
	}
	return rr, decoded
}

func TestRunStartsInBackground(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	rr, body := serve(t, svc, http.MethodPost, "/collector/run", `{"sources":["kci"],"keywords":["치험례"]}`)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "COL-2", body["collection_id"])
	assert.Zero(t, svc.lastReq.MaxArticles)
	assert.NotContains(t, body, "max_articles")
	assert.Equal(t, []string{"kci"}, svc.lastReq.Sources)
	assert.Equal(t, []string{"치험례"}, svc.lastReq.Keywords)
}

func TestRunAcceptsEmptyBody(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	rr, _ := serve(t, svc, http.MethodPost, "/collector/run", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Zero(t, svc.lastReq.MaxArticles)
}

func TestRunPassesExplicitMaxArticles(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	rr, body := serve(t, svc, http.MethodPost, "/collector/run", `{"max_articles":120}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, 120, svc.lastReq.MaxArticles)
	assert.EqualValues(t, 120, body["max_articles"])
}

func TestRunWaitReturnsSummary(t *testing.T) {
	t.Parallel()

	rr, body := serve(t, &fakeService{}, http.MethodPost, "/collector/run?wait=true", `{"max_articles":10}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "COL-1", body["collection_id"])
	assert.Equal(t, "completed", body["status"])
}

func TestRunConflictsWhileRunning(t *testing.T) {
	t.Parallel()

	svc := &fakeService{running: true}
	rr, body := serve(t, svc, http.MethodPost, "/collector/run", `{}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, domain.ErrAlreadyRunning.Error(), body["error"])

	rr, body = serve(t, svc, http.MethodPost, "/collector/run?wait=1", `{}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "rejected", body["status"])
}

func TestRunValidatesMaxArticles(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"max_articles":0}`, `{"max_articles":201}`, `{"max_articles":"x"}`, `{`} {
		rr, _ := serve(t, &fakeService{}, http.MethodPost, "/collector/run", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestPendingPagination(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	for _, id := range []string{"a", "b", "c"} {
		svc.pending = append(svc.pending, domain.PersistedCase{CandidateCase: domain.CandidateCase{ID: id}})
	}

	rr, body := serve(t, svc, http.MethodGet, "/collector/pending?limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 1, body["limit"])
	assert.EqualValues(t, 1, body["offset"])
	cases := body["cases"].([]any)
	require.Len(t, cases, 1)
	assert.Equal(t, "b", cases[0].(map[string]any)["id"])

	rr, body = serve(t, svc, http.MethodGet, "/collector/pending?offset=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, body["cases"])

	rr, _ = serve(t, svc, http.MethodGet, "/collector/pending?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApproveAndReject(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	rr, body := serve(t, svc, http.MethodPost, "/collector/approve", `{"case_ids":["a","b"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 2, body["approved_count"])
	assert.Equal(t, []string{"a", "b"}, svc.approved)

	rr, _ = serve(t, svc, http.MethodPost, "/collector/approve", `{"case_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, body = serve(t, svc, http.MethodPost, "/collector/reject", `{"case_ids":["c"],"reason":"not a case report"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, body["rejected_count"])
	assert.Equal(t, "not a case report", svc.reason)
}

func TestAutoApprove(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	rr, body := serve(t, svc, http.MethodPost, "/collector/auto-approve?threshold=0.8", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 3, body["approved_count"])
	assert.InDelta(t, 0.8, body["threshold"], 1e-9)

	rr, body = serve(t, svc, http.MethodPost, "/collector/auto-approve", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.InDelta(t, 0.9, body["threshold"], 1e-9)

	rr, _ = serve(t, svc, http.MethodPost, "/collector/auto-approve?threshold=high", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogsStatsAndStatus(t *testing.T) {
	t.Parallel()

	svc := &fakeService{logs: []domain.RunSummary{{ID: "COL-a"}, {ID: "COL-b"}}}

	rr, body := serve(t, svc, http.MethodGet, "/collector/logs?limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, body["count"])

	rr, body = serve(t, svc, http.MethodGet, "/collector/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 4, body["total_cases"])

	rr, body = serve(t, svc, http.MethodGet, "/collector/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["enabled"])
	assert.Equal(t, []any{"kci"}, body["registered_sources"])
}

func TestInternalErrorsAreMasked(t *testing.T) {
	t.Parallel()

	rr, body := serve(t, &fakeService{statsErr: errors.New("redis: connection refused")}, http.MethodGet, "/collector/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal error", body["error"])
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeService{})
	rr, body := serveWith(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])

	rr, _ = serveWith(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "casecollector_http_requests_total")
}
