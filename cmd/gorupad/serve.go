package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/gorupad/playground"
)

var serveCmd = &cobra.Command{
	Use:   "serve [playground-url]",
	Short: "Serve the playground over HTTP",
	Long: `Start an HTTP server exposing one playground session as JSON endpoints.

Endpoints:
  GET    /health          Bootstrap phase and readiness
  GET    /state           Current playground state
  PUT    /source          Replace the editor source {"source":"..."}
  POST   /run             Run {"code":"..."}, or the editor source when empty
  POST   /terminal        Submit a terminal line {"line":"..."}
  POST   /install         Install a package {"package":"..."}
  POST   /output/clear    Reset the output buffer
  POST   /layout          Set {"layout":"horizontal"} or toggle when empty`,
	Args: cobra.MaximumNArgs(1),
	Run:  runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (default 127.0.0.1:8080)")
	addSnippetFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

type stateResponse struct {
	Source         string `json:"source"`
	Output         string `json:"output"`
	Error          string `json:"error,omitempty"`
	Layout         string `json:"layout"`
	RuntimeReady   bool   `json:"runtime_ready"`
	RuntimeLoading bool   `json:"runtime_loading"`
	AppLoading     bool   `json:"app_loading"`
	CodeExecuting  bool   `json:"code_executing"`
	PackageLoading bool   `json:"package_loading"`
}

func newStateResponse(s playground.State) stateResponse {
	return stateResponse{
		Source:         s.Source,
		Output:         s.Output,
		Error:          s.Error,
		Layout:         string(s.Layout),
		RuntimeReady:   s.RuntimeReady,
		RuntimeLoading: s.RuntimeLoading,
		AppLoading:     s.AppLoading,
		CodeExecuting:  s.CodeExecuting,
		PackageLoading: s.PackageLoading,
	}
}

type sourceRequest struct {
	Source string `json:"source"`
}

type runRequest struct {
	Code string `json:"code"`
}

type terminalRequest struct {
	Line string `json:"line"`
}

type installRequest struct {
	Package string `json:"package"`
}

type layoutRequest struct {
	Layout string `json:"layout"`
}

type runResponse struct {
	RunID      string `json:"run_id"`
	Output     string `json:"output"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type installResponse struct {
	Packages []string `json:"packages"`
	Error    string   `json:"error,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	Phase  string `json:"phase"`
}

type server struct {
	app    *playground.App
	logger *slog.Logger
}

// newServer returns the HTTP API for app. Actions that need the runtime are
// refused with 503 until bootstrap has finished.
func newServer(app *playground.App, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &server{app: app, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("PUT /source", s.handleSource)
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("POST /terminal", s.handleTerminal)
	mux.HandleFunc("POST /install", s.handleInstall)
	mux.HandleFunc("POST /output/clear", s.handleClear)
	mux.HandleFunc("POST /layout", s.handleLayout)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *server) ready(w http.ResponseWriter) bool {
	if s.app.Store().Snapshot().Loading() {
		http.Error(w, "playground is still loading", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.app.Store().Snapshot().Loading() {
		status = "loading"
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: status, Phase: string(s.app.Phase())})
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(s.app.Store().Snapshot()))
}

func (s *server) handleSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Source == "" {
		http.Error(w, "source required", http.StatusBadRequest)
		return
	}
	s.app.Edit(req.Source)
	writeJSON(w, http.StatusOK, newStateResponse(s.app.Store().Snapshot()))
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if !s.ready(w) {
		return
	}
	s.perform(r.Context(), w, func(ctx context.Context) {
		if req.Code == "" {
			s.app.RunEditor(ctx)
			return
		}
		s.app.Run(ctx, req.Code)
	})
}

func (s *server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	var req terminalRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if !s.ready(w) {
		return
	}
	s.perform(r.Context(), w, func(ctx context.Context) {
		s.app.Submit(ctx, req.Line)
	})
}

// perform runs fn and reports what it added to the output buffer. A run
// started here finishes even if the client goes away.
func (s *server) perform(ctx context.Context, w http.ResponseWriter, fn func(context.Context)) {
	store := s.app.Store()
	runID := uuid.NewString()
	before := store.Snapshot().Output

	start := time.Now()
	fn(context.WithoutCancel(ctx))
	elapsed := time.Since(start)

	state := store.Snapshot()
	resp := runResponse{
		RunID:      runID,
		Output:     outputSince(before, state.Output),
		DurationMs: elapsed.Milliseconds(),
		Error:      state.Error,
	}
	s.logger.Info("request executed", "run_id", runID, "duration", elapsed, "error", state.Error)
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	name := playground.ParseInstallDirective(req.Package)
	if name == "" {
		http.Error(w, "package required", http.StatusBadRequest)
		return
	}
	if !s.ready(w) {
		return
	}

	store := s.app.Store()
	store.ClearError()
	s.app.Install(context.WithoutCancel(r.Context()), name)

	writeJSON(w, http.StatusOK, installResponse{
		Packages: s.app.Packages(),
		Error:    store.Snapshot().Error,
	})
}

func (s *server) handleClear(w http.ResponseWriter, r *http.Request) {
	store := s.app.Store()
	store.ClearOutput()
	writeJSON(w, http.StatusOK, newStateResponse(store.Snapshot()))
}

func (s *server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	store := s.app.Store()
	switch playground.Layout(req.Layout) {
	case "":
		store.ToggleLayout()
	case playground.LayoutVertical, playground.LayoutHorizontal:
		store.SetLayout(playground.Layout(req.Layout))
	default:
		http.Error(w, fmt.Sprintf("unknown layout %q", req.Layout), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(store.Snapshot()))
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ref, err := snippetRef(cmd, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Serve.Addr = addr
	}

	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	app, cleanup := newApp(cfg, logger)
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	go app.Bootstrap(ctx, ref)

	srv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           newServer(app, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", "addr", cfg.Serve.Addr)
	fmt.Fprintf(os.Stderr, "Listening on http://%s\n", cfg.Serve.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cleanup()
		os.Exit(1)
	}
}
