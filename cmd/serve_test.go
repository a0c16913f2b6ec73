package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/clickmap/internal/model"
	"github.com/sells-group/clickmap/internal/pipeline"
	"github.com/sells-group/clickmap/internal/store"
)

type fakeRunner struct {
	store store.Store
	calls chan *model.Run
	delay time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *fakeRunner) Start(ctx context.Context, params model.RunParams) (*model.Run, error) {
	return f.store.CreateRun(ctx, params)
}

func (f *fakeRunner) Execute(_ context.Context, run *model.Run) (*pipeline.Output, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	if n > f.maxActive.Load() {
		f.maxActive.Store(n)
	}
	time.Sleep(f.delay)
	f.calls <- run
	return &pipeline.Output{RunID: run.ID, Result: &model.RunResult{}}, nil
}

func newTestServer(t *testing.T) (*server, *store.SQLiteStore, *fakeRunner) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	runner := &fakeRunner{store: st, calls: make(chan *model.Run, 4)}
	s := &server{
		ctx:    context.Background(),
		store:  st,
		runner: runner,
		defaults: func() model.RunParams {
			return model.RunParams{Caption: "Clicks", Normalize: true, HTMLPath: "map.html", GIFPath: "map.gif"}
		},
	}
	return s, st, runner
}

// completedRun stores a finished run whose artifacts exist on disk.
func completedRun(t *testing.T, st store.Store) (*model.Run, string) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "map.html")
	gifPath := filepath.Join(dir, "map.gif")
	require.NoError(t, os.WriteFile(htmlPath, []byte("<html>leaflet</html>"), 0o644))
	require.NoError(t, os.WriteFile(gifPath, []byte("GIF89a"), 0o644))

	run, err := st.CreateRun(ctx, model.RunParams{Caption: "Clicks", HTMLPath: htmlPath})
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, &model.RunResult{HTMLPath: htmlPath, GIFPath: gifPath, Features: 3}))
	return run, htmlPath
}

func TestServer_Health(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_ListRuns_Empty(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServer_ListRuns_BadLimit(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetRun(t *testing.T) {
	s, st, _ := newTestServer(t)
	run, _ := completedRun(t, st)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 3, got.Result.Features)
}

func TestServer_GetRun_NotFound(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Artifacts(t *testing.T) {
	s, st, _ := newTestServer(t)
	run, _ := completedRun(t, st)
	h := s.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/map", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leaflet")
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/gif", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/map", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leaflet")
}

func TestServer_LatestMap_NoRuns(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/map", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Artifact_DeletedFile(t *testing.T) {
	s, st, _ := newTestServer(t)
	run, htmlPath := completedRun(t, st)
	require.NoError(t, os.Remove(htmlPath))

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/map", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func postRun(t *testing.T, s *server, body string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])
	assert.Equal(t, string(model.RunStatusQueued), resp["status"])
	return resp["id"]
}

func TestServer_CreateRun(t *testing.T) {
	s, _, runner := newTestServer(t)

	id := postRun(t, s, `{"caption":"October","normalize":false,"skip_gif":true}`)

	select {
	case run := <-runner.calls:
		assert.Equal(t, id, run.ID)
		assert.Equal(t, "October", run.Params.Caption)
		assert.False(t, run.Params.Normalize)
		assert.True(t, run.Params.SkipGIF)
		assert.Equal(t, filepath.Join("runs", id, "map.html"), run.Params.HTMLPath)
		assert.Equal(t, filepath.Join("runs", id, "map.gif"), run.Params.GIFPath)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not started")
	}
}

func TestServer_CreateRun_IDIsQueryable(t *testing.T) {
	s, _, runner := newTestServer(t)

	id := postRun(t, s, `{"caption":"October"}`)
	s.wait()
	<-runner.calls

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var run model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "October", run.Params.Caption)
}

func TestServer_CreateRun_SerializesAndWaits(t *testing.T) {
	s, _, runner := newTestServer(t)
	runner.delay = 20 * time.Millisecond

	first := postRun(t, s, `{}`)
	second := postRun(t, s, `{}`)
	assert.NotEqual(t, first, second)

	s.wait()
	assert.Len(t, runner.calls, 2)
	assert.Equal(t, int32(1), runner.maxActive.Load())
	assert.Equal(t, int32(0), runner.active.Load())
}

func TestServer_CreateRun_EmptyBodyUsesDefaults(t *testing.T) {
	s, _, runner := newTestServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case run := <-runner.calls:
		assert.Equal(t, "Clicks", run.Params.Caption)
		assert.True(t, run.Params.Normalize)
		assert.False(t, run.Params.SkipGIF)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not started")
	}
}

func TestRunArtifactPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "runs", "abc", "map.html"), runArtifactPath("abc", filepath.Join("out", "map.html")))
	assert.Empty(t, runArtifactPath("abc", ""))
}

func TestServer_CreateRun_InvalidBody(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CORS(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
