package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/patterns/internal/database/imports"
	"github.com/mrlokans/patterns/internal/entities"
	"github.com/mrlokans/patterns/internal/tasks"
)

type mockRunStore struct {
	runs []entities.ImportRun
}

func (m *mockRunStore) Recent(_ context.Context, limit int) ([]entities.ImportRun, error) {
	if len(m.runs) > limit {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func (m *mockRunStore) GetByRunID(_ context.Context, runID string) (*entities.ImportRun, error) {
	for i := range m.runs {
		if m.runs[i].RunID == runID {
			return &m.runs[i], nil
		}
	}
	return nil, imports.ErrNotFound
}

func newTaskClient(t *testing.T) *tasks.Client {
	t.Helper()
	client, err := tasks.NewClient(filepath.Join(t.TempDir(), "test.db"), tasks.Config{Workers: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestImportsController_EnqueueAndStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(RouterConfig{Runs: &mockRunStore{}, Tasks: newTaskClient(t)})

	body, _ := json.Marshal(ImportRequest{URL: "https://example.com/hat", Name: "Hat"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/imports", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["task_id"])

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/tasks/"+resp["task_id"], nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "pending", status["status"])
}

func TestImportsController_EnqueueRejectsBadURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(RouterConfig{Runs: &mockRunStore{}, Tasks: newTaskClient(t)})

	for _, body := range []string{`{}`, `{"url":"ftp://example.com/a"}`, `not json`} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/imports", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestImportsController_QueueDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(RouterConfig{Runs: &mockRunStore{}})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/imports", bytes.NewReader([]byte(`{"url":"https://example.com"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestImportsController_Runs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runs := &mockRunStore{runs: []entities.ImportRun{
		{RunID: "b", Status: entities.ImportStatusFailed, Errors: []string{"html: no structure"}},
		{RunID: "a", Status: entities.ImportStatusCompleted},
	}}
	router := NewRouter(RouterConfig{Runs: runs})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/imports?limit=1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs []entities.ImportRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "b", list.Runs[0].RunID)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/imports/b", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, []string{"html: no structure"}, detail.Errors)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/imports/missing", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pattern_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	router := NewRouter(RouterConfig{Gatherer: reg})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pattern_test_total 1")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/patterns", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
