package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"achk/internal/config"
	"achk/internal/history"
)

func newTestServer(t *testing.T) (*Server, config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return NewServer(cfg, history.NewManager(cfg.DataDir, cfg.MaxHistoryEntries)), cfg
}

func TestHandleHistoryEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String(), "no history is an empty array, not null")
}

func TestHandleHistoryReturnsEntries(t *testing.T) {
	srv, _ := newTestServer(t)
	require.NoError(t, srv.hist.Add("baseline", []string{`C:\Windows`}, "alice", 3))

	rec := httptest.NewRecorder()
	srv.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	var entries []history.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "baseline", entries[0].ScanType)
}

func TestArtifactHandler(t *testing.T) {
	srv, cfg := newTestServer(t)

	t.Run("missing artifact is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.artifactHandler(cfg.BaselineGen)(rec, httptest.NewRequest(http.MethodGet, "/api/baseline", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("artifact served as line array", func(t *testing.T) {
		path := filepath.Join(cfg.DataDir, cfg.BaselineGen)
		require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o644))

		rec := httptest.NewRecorder()
		srv.artifactHandler(cfg.BaselineGen)(rec, httptest.NewRequest(http.MethodGet, "/api/baseline", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Artifact string   `json:"artifact"`
			Lines    []string `json:"lines"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, cfg.BaselineGen, body.Artifact)
		assert.Equal(t, []string{"line one", "line two"}, body.Lines)
	})
}

func TestHandleIndex(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/diff")

	rec = httptest.NewRecorder()
	srv.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
