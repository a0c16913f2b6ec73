package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/clickmap/internal/model"
	"github.com/sells-group/clickmap/internal/pipeline"
	"github.com/sells-group/clickmap/internal/store"
)

var servePort int

// mapRunner is the part of the pipeline the server drives.
type mapRunner interface {
	Start(ctx context.Context, params model.RunParams) (*model.Run, error)
	Execute(ctx context.Context, run *model.Run) (*pipeline.Output, error)
}

// server exposes run history and the rendered map over HTTP.
type server struct {
	ctx      context.Context // outlives requests; background runs use it
	store    store.Store
	runner   mapRunner
	defaults func() model.RunParams

	exec sync.Mutex     // one run at a time; the converter owns a single browser
	wg   sync.WaitGroup // background runs
}

// wait blocks until every background run has returned.
func (s *server) wait() {
	s.wg.Wait()
}

// runArtifactPath places a run's output under runs/<id> next to the
// configured path so runs never overwrite each other.
func runArtifactPath(runID, path string) string {
	if path == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(path), "runs", runID, filepath.Base(path))
}

// runRequest is the POST /runs body. Unset fields fall back to config.
type runRequest struct {
	InputPath string `json:"input_path"`
	DateFrom  string `json:"date_from"`
	DateTo    string `json:"date_to"`
	Caption   string `json:"caption"`
	Normalize *bool  `json:"normalize"`
	SkipGIF   bool   `json:"skip_gif"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/map", s.handleLatestMap)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Post("/", s.handleCreateRun)
		r.Get("/{runID}", s.handleGetRun)
		r.Get("/{runID}/map", s.handleRunMap)
		r.Get("/{runID}/gif", s.handleRunGIF)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Status: model.RunStatus(r.URL.Query().Get("status")), Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	params := s.defaults()
	if req.InputPath != "" {
		params.InputPath = req.InputPath
	}
	if req.DateFrom != "" {
		params.DateFrom = req.DateFrom
	}
	if req.DateTo != "" {
		params.DateTo = req.DateTo
	}
	if req.Caption != "" {
		params.Caption = req.Caption
	}
	if req.Normalize != nil {
		params.Normalize = *req.Normalize
	}
	params.SkipGIF = params.SkipGIF || req.SkipGIF

	run, err := s.runner.Start(r.Context(), params)
	if err != nil {
		zap.L().Error("create run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create run failed")
		return
	}
	run.Params.HTMLPath = runArtifactPath(run.ID, run.Params.HTMLPath)
	run.Params.GIFPath = runArtifactPath(run.ID, run.Params.GIFPath)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.exec.Lock()
		defer s.exec.Unlock()

		out, err := s.runner.Execute(s.ctx, run)
		if err != nil {
			zap.L().Error("map run failed", zap.String("run_id", run.ID), zap.Error(err))
			return
		}
		zap.L().Info("map run complete",
			zap.String("run_id", out.RunID),
			zap.Int("features", out.Result.Features),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": run.ID, "status": string(run.Status)})
}

// handleLatestMap serves the HTML of the most recent completed run.
func (s *server) handleLatestMap(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), store.RunFilter{Status: model.RunStatusComplete, Limit: 1})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if len(runs) == 0 || runs[0].Result == nil {
		writeError(w, http.StatusNotFound, "no completed runs")
		return
	}
	serveArtifact(w, r, runs[0].Result.HTMLPath, "text/html; charset=utf-8")
}

func (s *server) handleRunMap(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	if run.Result == nil {
		writeError(w, http.StatusNotFound, "run has no map yet")
		return
	}
	serveArtifact(w, r, run.Result.HTMLPath, "text/html; charset=utf-8")
}

func (s *server) handleRunGIF(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	if run.Result == nil || run.Result.GIFPath == "" {
		writeError(w, http.StatusNotFound, "run has no gif")
		return
	}
	serveArtifact(w, r, run.Result.GIFPath, "image/gif")
}

func (s *server) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	return run, true
}

func serveArtifact(w http.ResponseWriter, r *http.Request, path, contentType string) {
	if path == "" {
		writeError(w, http.StatusNotFound, "artifact missing")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "artifact missing")
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run history and rendered maps over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		env, err := initPipeline(ctx, pipelineOptions{
			mode:        "serve",
			withWindsor: cfg.Windsor.Key != "",
			withCapture: true,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		s := &server{
			ctx:      ctx,
			store:    env.Store,
			runner:   env.Pipeline,
			defaults: runParamsFromConfig,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		listenErr := srv.ListenAndServe()
		stop()
		s.wait()
		if listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			return eris.Wrap(listenErr, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
