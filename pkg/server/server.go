// Package server exposes the vectorization pipeline over HTTP.
//
// Routes:
//
//	POST /v1/vectorize   multipart: image (file), corners (optional JSON), options (optional JSON)
//	POST /v1/corners     multipart: image (file)
//	GET  /healthz
//	GET  /version
//
// Vectorize responses carry the run ID in the X-Run-ID header. The output
// format is chosen with ?format=svg|json|png (default json). At most
// Config.MaxConcurrent vectorize jobs run at once; further requests wait for
// a slot until their context ends.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/matzehuels/mendel/pkg/buildinfo"
	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/observability"
	"github.com/matzehuels/mendel/pkg/pipeline"
	"github.com/matzehuels/mendel/pkg/raster"
)

// Default server limits.
const (
	DefaultAddr           = ":8080"
	DefaultMaxConcurrent  = 2
	DefaultMaxUploadBytes = 32 << 20
	DefaultRequestTimeout = 5 * time.Minute

	DefaultMaxPopulation  = 5000
	DefaultMaxGenerations = 2000
	DefaultMaxWorkers     = 16
	DefaultMaxPixels      = 4096 * 4096
	DefaultMinStep        = 0.001
)

// Config configures a Server.
type Config struct {
	Addr           string
	MaxConcurrent  int64
	MaxUploadBytes int64
	RequestTimeout time.Duration

	// Per-request work limits. Requests whose options or image exceed them
	// are rejected with INVALID_CONFIG before any search runs.
	MaxPopulation  int
	MaxGenerations int
	MaxWorkers     int
	MaxPixels      int
	MinStep        float64

	// Defaults are the pipeline options requests start from. Request
	// options override non-zero fields.
	Defaults pipeline.Options
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxPopulation <= 0 {
		c.MaxPopulation = DefaultMaxPopulation
	}
	if c.MaxGenerations <= 0 {
		c.MaxGenerations = DefaultMaxGenerations
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = DefaultMaxPixels
	}
	if c.MinStep <= 0 {
		c.MinStep = DefaultMinStep
	}
}

// checkImage rejects images larger than MaxPixels.
func (c Config) checkImage(img *raster.Gray) error {
	if px := img.Width() * img.Height(); px > c.MaxPixels {
		return errors.New(errors.ErrCodeInvalidConfig, "image has %d pixels, limit is %d", px, c.MaxPixels)
	}
	return nil
}

// checkOptions rejects options that ask for more work than the server
// allows. Zero fields are checked at their default values.
func (c Config) checkOptions(opts pipeline.Options) error {
	sc := opts.Solver
	if err := sc.ValidateAndSetDefaults(); err != nil {
		return err
	}
	switch {
	case sc.PopulationSize > c.MaxPopulation:
		return errors.New(errors.ErrCodeInvalidConfig, "population_size %d exceeds limit %d", sc.PopulationSize, c.MaxPopulation)
	case sc.MaxGenerations > c.MaxGenerations:
		return errors.New(errors.ErrCodeInvalidConfig, "max_generations %d exceeds limit %d", sc.MaxGenerations, c.MaxGenerations)
	case opts.Workers > c.MaxWorkers:
		return errors.New(errors.ErrCodeInvalidConfig, "workers %d exceeds limit %d", opts.Workers, c.MaxWorkers)
	case opts.Step != 0 && opts.Step < c.MinStep:
		return errors.New(errors.ErrCodeInvalidConfig, "step %g is below limit %g", opts.Step, c.MinStep)
	}
	return nil
}

// Server serves the HTTP API.
type Server struct {
	runner *pipeline.Runner
	cfg    Config
	sem    *semaphore.Weighted
	logger *log.Logger
	router chi.Router
}

// New builds a server around runner.
func New(runner *pipeline.Runner, cfg Config, logger *log.Logger) *Server {
	cfg.setDefaults()
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		runner: runner,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		r.Post("/vectorize", s.handleVectorize)
		r.Post("/corners", s.handleCorners)
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// instrument logs each request and reports it to the HTTP hooks.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.Host, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, r.Host, r.URL.Path, status, time.Since(started))
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status,
			"bytes", ww.BytesWritten(), "duration", time.Since(started))
	})
}

type errorResponse struct {
	Error   errors.Code `json:"error"`
	Message string      `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	status := errors.StatusCode(err)
	if r.Context().Err() != nil {
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
		observability.HTTP().OnError(r.Context(), r.Method, r.Host, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{Error: code, Message: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}
