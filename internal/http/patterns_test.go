package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/patterns/internal/database/patterns"
	"github.com/mrlokans/patterns/internal/entities"
	"github.com/mrlokans/patterns/internal/importers"
)

type mockPatternStore struct {
	patterns  map[uint]*entities.Pattern
	deletedID uint
	err       error
}

func (m *mockPatternStore) GetByID(_ context.Context, id uint) (*entities.Pattern, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.patterns[id]
	if !ok {
		return nil, patterns.ErrNotFound
	}
	return p, nil
}

func (m *mockPatternStore) List(_ context.Context, limit, offset int) ([]entities.Pattern, error) {
	var out []entities.Pattern
	for id := uint(1); id <= uint(len(m.patterns)); id++ {
		out = append(out, *m.patterns[id])
	}
	if offset >= len(out) {
		return nil, m.err
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, m.err
}

func (m *mockPatternStore) Count(context.Context) (int64, error) {
	return int64(len(m.patterns)), m.err
}

func (m *mockPatternStore) Delete(_ context.Context, id uint) error {
	if _, ok := m.patterns[id]; !ok {
		return patterns.ErrNotFound
	}
	m.deletedID = id
	return m.err
}

type mockAttacher struct {
	patternID uint
	urls      []string
	result    importers.ImportResult
}

func (m *mockAttacher) AttachImages(_ context.Context, patternID uint, urls []string) (importers.ImportResult, error) {
	m.patternID, m.urls = patternID, urls
	return m.result, nil
}

type mockMedia struct{ removed []uint }

func (m *mockMedia) RemovePattern(id uint) error {
	m.removed = append(m.removed, id)
	return nil
}

func newPatternStore() *mockPatternStore {
	return &mockPatternStore{patterns: map[uint]*entities.Pattern{
		1: {ID: 1, Name: "Simple Hat"},
		2: {ID: 2, Name: "Garter Scarf"},
		3: {ID: 3, Name: "Mittens"},
	}}
}

func setupPatternsRouter(store PatternStore, attacher ImageAttacher, media MediaRemover) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{Patterns: store, ImageAttacher: attacher, Media: media})
}

func TestPatternsController_List(t *testing.T) {
	router := setupPatternsRouter(newPatternStore(), nil, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/patterns?limit=2&offset=0", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data    []entities.Pattern `json:"data"`
		Total   int64              `json:"total"`
		HasMore bool               `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int64(3), resp.Total)
	assert.True(t, resp.HasMore)
}

func TestPatternsController_Get(t *testing.T) {
	router := setupPatternsRouter(newPatternStore(), nil, nil)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/patterns/2", http.StatusOK},
		{"/api/patterns/99", http.StatusNotFound},
		{"/api/patterns/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", tt.path, nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestPatternsController_DeleteRemovesMedia(t *testing.T) {
	store := newPatternStore()
	media := &mockMedia{}
	router := setupPatternsRouter(store, nil, media)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/patterns/3", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, uint(3), store.deletedID)
	assert.Equal(t, []uint{3}, media.removed)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/patterns/42", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []uint{3}, media.removed)
}

func TestPatternsController_AttachImages(t *testing.T) {
	attacher := &mockAttacher{result: importers.ImportResult{Success: true, EntityID: 1, ImagesImported: 1}}
	router := setupPatternsRouter(newPatternStore(), attacher, nil)

	body, _ := json.Marshal(AttachImagesRequest{URLs: []string{" https://example.com/a.jpg ", ""}})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/patterns/1/images", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(1), attacher.patternID)
	assert.Equal(t, []string{"https://example.com/a.jpg"}, attacher.urls)

	var result importers.ImportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.ImagesImported)
}

func TestPatternsController_AttachImagesValidation(t *testing.T) {
	attacher := &mockAttacher{result: importers.Failed("pattern 1 not found")}
	router := setupPatternsRouter(newPatternStore(), attacher, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/patterns/1/images", bytes.NewReader([]byte(`{"urls":["  "]}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/patterns/1/images", bytes.NewReader([]byte(`{"urls":["https://example.com/a.jpg"]}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
