package webapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore implements RunStore for testing.
type mockStore struct {
	runs    map[string]*RunDetail
	listErr error
	getErr  error
	sumErr  error
}

func newMockStore() *mockStore {
	return &mockStore{runs: make(map[string]*RunDetail)}
}

func (m *mockStore) addRun(detail *RunDetail) {
	m.runs[detail.ID] = detail
}

func (m *mockStore) ListRuns(sortField, order string) ([]RunSummary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	runs := make([]RunSummary, 0, len(m.runs))
	for _, d := range m.runs {
		runs = append(runs, d.RunSummary)
	}
	sortRuns(runs, sortField, order)
	return runs, nil
}

func (m *mockStore) GetRun(id string) (*RunDetail, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	d, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return d, nil
}

func (m *mockStore) Summary() (*SummaryResponse, error) {
	if m.sumErr != nil {
		return nil, m.sumErr
	}
	resp := &SummaryResponse{}
	totalScore := 0.0
	totalDuration := 0.0
	totalPassed := 0
	totalClaims := 0

	for _, d := range m.runs {
		resp.TotalRuns++
		totalClaims += d.ClaimCount
		totalPassed += d.PassCount
		totalScore += d.Score
		totalDuration += d.Duration
	}

	resp.TotalClaims = totalClaims
	if totalClaims > 0 {
		resp.PassRate = float64(totalPassed) / float64(totalClaims) * 100.0
	}
	if resp.TotalRuns > 0 {
		resp.AvgScore = totalScore / float64(resp.TotalRuns)
		resp.AvgDuration = totalDuration / float64(resp.TotalRuns)
	}

	return resp, nil
}

func sampleRun(id, spec string, passed, total int, score float64, ts time.Time) *RunDetail {
	outcome := "passed"
	if passed < total {
		outcome = "failed"
	}
	return &RunDetail{
		RunSummary: RunSummary{
			ID:         id,
			Spec:       spec,
			Providers:  []string{"openai", "anthropic"},
			Outcome:    outcome,
			PassCount:  passed,
			ClaimCount: total,
			Score:      score,
			Duration:   12.5,
			Timestamp:  ts,
		},
		Claims: []ClaimResult{
			{
				Name:      "p99 latency",
				Outcome:   "passed",
				Verdict:   "supported",
				Expected:  "supported",
				Score:     0.95,
				Agreement: 0.98,
				Duration:  3.2,
				Verdicts: []VerdictResult{
					{
						Provider:   "openai",
						Verdict:    "supported",
						Confidence: 0.9,
						Rationale:  "metrics confirm the threshold",
					},
				},
			},
		},
	}
}

func newTestMux(store RunStore) *http.ServeMux {
	mux := http.NewServeMux()
	RegisterRoutes(mux, store)
	return mux
}

func doGet(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	mux := newTestMux(newMockStore())
	rec := doGet(t, mux, "/api/health")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Version)
}

func TestHandleRuns(t *testing.T) {
	store := newMockStore()
	store.addRun(sampleRun("run-1", "release-claims", 3, 3, 0.92, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	store.addRun(sampleRun("run-2", "release-claims", 1, 3, 0.45, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)))

	mux := newTestMux(store)
	rec := doGet(t, mux, "/api/runs")

	require.Equal(t, http.StatusOK, rec.Code)

	var runs []RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)

	// Default sort is timestamp descending
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
}

func TestHandleRuns_SortByScoreAscending(t *testing.T) {
	store := newMockStore()
	store.addRun(sampleRun("run-1", "spec", 3, 3, 0.92, time.Now()))
	store.addRun(sampleRun("run-2", "spec", 1, 3, 0.45, time.Now()))

	mux := newTestMux(store)
	rec := doGet(t, mux, "/api/runs?sort=score&order=asc")

	require.Equal(t, http.StatusOK, rec.Code)

	var runs []RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
}

func TestHandleRuns_StoreError(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("disk exploded")

	mux := newTestMux(store)
	rec := doGet(t, mux, "/api/runs")

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "disk exploded")
}

func TestHandleRunDetail(t *testing.T) {
	store := newMockStore()
	store.addRun(sampleRun("run-1", "release-claims", 3, 3, 0.92, time.Now()))

	mux := newTestMux(store)
	rec := doGet(t, mux, "/api/runs/run-1")

	require.Equal(t, http.StatusOK, rec.Code)

	var detail RunDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "run-1", detail.ID)
	require.Len(t, detail.Claims, 1)
	assert.Equal(t, "p99 latency", detail.Claims[0].Name)
	assert.Equal(t, "supported", detail.Claims[0].Verdict)
	require.Len(t, detail.Claims[0].Verdicts, 1)
	assert.Equal(t, "openai", detail.Claims[0].Verdicts[0].Provider)
}

func TestHandleRunDetail_NotFound(t *testing.T) {
	mux := newTestMux(newMockStore())
	rec := doGet(t, mux, "/api/runs/missing")

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run not found", resp.Error)
}

func TestHandleSummary(t *testing.T) {
	store := newMockStore()
	store.addRun(sampleRun("run-1", "spec", 3, 3, 0.9, time.Now()))
	store.addRun(sampleRun("run-2", "spec", 1, 3, 0.5, time.Now()))

	mux := newTestMux(store)
	rec := doGet(t, mux, "/api/summary")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalRuns)
	assert.Equal(t, 6, resp.TotalClaims)
	assert.InDelta(t, 66.67, resp.PassRate, 0.01)
	assert.InDelta(t, 0.7, resp.AvgScore, 0.001)
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	mux := newTestMux(newMockStore())
	handler := CORSMiddleware(mux, "http://localhost:3000")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	mux := newTestMux(newMockStore())
	handler := CORSMiddleware(mux, "http://localhost:3000")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_Options(t *testing.T) {
	mux := newTestMux(newMockStore())
	handler := CORSMiddleware(mux, "http://localhost:3000")

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
