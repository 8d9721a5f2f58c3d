// Package server exposes the layout pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz          liveness and build version
//	POST /v1/solve         solve one map, JSON in and out
//	GET  /v1/solve/stream  websocket: send one request, receive progress then the result
//
// Request bodies are validated against an embedded JSON schema before they
// reach the pipeline.
package server

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/matzehuels/oreflow/pkg/buildinfo"
	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/observability"
	"github.com/matzehuels/oreflow/pkg/pipeline"
)

//go:embed solve_request.schema.json
var solveRequestSchema []byte

const schemaURL = "https://oreflow.dev/schemas/solve_request.schema.json"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Config configures a Server.
type Config struct {
	Addr string

	// MaxCells rejects maps with more cells. Zero means no limit.
	MaxCells int

	// Defaults supplies settings a request leaves unset: rates, ore
	// counting, glyphs, alphabet, node limit and timeout. Timeout also caps
	// the timeout a request may ask for.
	Defaults pipeline.Options
}

// Server serves the HTTP API.
type Server struct {
	cfg      Config
	runner   *pipeline.Runner
	logger   *log.Logger
	schema   *jsonschema.Schema
	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds a server around runner.
func New(runner *pipeline.Runner, cfg Config, logger *log.Logger) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("nil runner")
	}
	if logger == nil {
		logger = log.Default()
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		runner: runner,
		logger: logger,
		schema: schema,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(solveRequestSchema)); err != nil {
		return nil, fmt.Errorf("load request schema: %w", err)
	}
	return c.Compile(schemaURL)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/solve", s.handleSolve)
		r.Get("/solve/stream", s.handleStream)
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", s.cfg.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// observe reports requests to the HTTP hooks and the logger.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, time.Since(start))
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Get().Version,
	})
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge,
			errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body"))
		return
	}
	req, err := s.decodeRequest(body)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	opts := s.options(req)
	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newResponse(res))
}

// decodeRequest validates body against the schema and decodes it.
func (s *Server) decodeRequest(body []byte) (*SolveRequest, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "request is not valid JSON")
	}
	if err := s.schema.Validate(doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "request does not match schema")
	}
	var req SolveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request")
	}
	if s.cfg.MaxCells > 0 {
		if n := req.cells(); n > s.cfg.MaxCells {
			return nil, errors.New(errors.ErrCodeInvalidMap,
				"map has %d cells, this server accepts at most %d", n, s.cfg.MaxCells)
		}
	}
	return &req, nil
}

// options merges a request over the server defaults.
func (s *Server) options(req *SolveRequest) pipeline.Options {
	d := s.cfg.Defaults
	opts := pipeline.Options{
		Map:              req.Map,
		MaxMachineOutput: d.MaxMachineOutput,
		MaxBeltOutput:    d.MaxBeltOutput,
		OreCounting:      d.OreCounting,
		Timeout:          d.Timeout,
		NodeLimit:        d.NodeLimit,
		Formats:          req.Formats,
		Terrain:          req.Terrain,
		Detailed:         req.Detailed,
		KeepIdle:         req.KeepIdle,
		Refresh:          req.Refresh,
		Alphabet:         d.Alphabet,
		Glyphs:           d.Glyphs,
	}
	if req.MaxMachineOutput > 0 {
		opts.MaxMachineOutput = req.MaxMachineOutput
	}
	if req.MaxBeltOutput > 0 {
		opts.MaxBeltOutput = req.MaxBeltOutput
	}
	if req.OreCounting != "" {
		opts.OreCounting = req.OreCounting
	}
	if req.NodeLimit > 0 {
		opts.NodeLimit = req.NodeLimit
	}
	if req.TimeoutMS > 0 {
		t := time.Duration(req.TimeoutMS) * time.Millisecond
		if opts.Timeout == 0 || t < opts.Timeout {
			opts.Timeout = t
		}
	}
	return opts
}

// statusFor maps error codes to HTTP statuses.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidMap, errors.ErrCodeEmptyMap,
		errors.ErrCodeNonRectangular, errors.ErrCodeUnknownSymbol, errors.ErrCodeInvalidConfig,
		errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: newErrorBody(err)})
}
