// Package server exposes wizard sessions, staged uploads and created
// companies over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formwizard/internal/store"
	"github.com/goliatone/go-formwizard/pkg/definition"
	"github.com/goliatone/go-formwizard/pkg/options"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/upload"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Config holds the listener and lifecycle settings.
type Config struct {
	Addr            string
	PreviewPrefix   string
	SessionTTL      time.Duration
	SweepInterval   time.Duration
	ShutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry replaces the session registry.
func WithRegistry(registry *session.Registry) Option {
	return func(s *Server) {
		if registry != nil {
			s.sessions = registry
		}
	}
}

// Server routes HTTP requests to wizard sessions and the company store.
type Server struct {
	cfg      Config
	defs     *definition.Store
	store    *store.Store
	sessions *session.Registry
	previews *upload.MemoryPreviews
	logger   *zap.Logger
	router   chi.Router

	optionSearch options.Config
}

// New builds a server over the loaded definitions and the store.
func New(cfg Config, defs *definition.Store, st *store.Store, opts ...Option) (*Server, error) {
	if defs.Empty() {
		return nil, errors.New("server: no wizard definitions loaded")
	}
	if st == nil {
		return nil, errors.New("server: store is required")
	}
	s := &Server{
		cfg:    cfg,
		defs:   defs,
		store:  st,
		logger: zap.NewNop(),

		optionSearch: options.NewConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.sessions == nil {
		s.sessions = session.NewRegistry(session.WithRegistryLogger(s.logger))
	}
	s.previews = upload.NewMemoryPreviews(mountPath(cfg.PreviewPrefix))
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the live session registry.
func (s *Server) Sessions() *session.Registry {
	return s.sessions
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/openapi.json", s.openAPI)

	r.Route("/api", func(r chi.Router) {
		r.Get("/wizards", s.listWizards)
		r.Post("/wizards/{wizard}/sessions", s.createSession)
		r.Get("/wizards/{wizard}/options/{field}", s.searchOptions)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/next", s.nextStep)
			r.Post("/back", s.previousStep)
			r.Post("/reset", s.resetSession)
			r.Post("/submit", s.submitSession)
			r.Put("/upload", s.stageUpload)
			r.Delete("/upload", s.clearUpload)
		})

		r.Get("/companies", s.listCompanies)
		r.Get("/companies/{id}", s.getCompany)
		r.Get("/uploads/{key}", s.getUpload)
	})

	r.Handle(mountPath(s.cfg.PreviewPrefix)+"*", s.previews)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Run serves until ctx is cancelled, sweeping idle sessions alongside. On
// cancellation the listener is shut down gracefully and every session is
// closed so previews are released.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.sessions.Sweep(gctx, s.cfg.SweepInterval, s.cfg.SessionTTL)
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.logger.Info("http server shutting down")
		err := srv.Shutdown(shutdownCtx)
		_ = s.sessions.Close()
		return err
	})
	return g.Wait()
}

func mountPath(prefix string) string {
	if prefix == "" {
		prefix = upload.DefaultPreviewPrefix
	}
	if prefix[0] != '/' {
		prefix = "/" + prefix
	}
	if prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	return prefix
}
