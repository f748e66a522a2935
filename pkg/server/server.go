// Package server assembles the request-serving pipeline:
//
//	client -> Shaping.pre -> Registry.lookup -> ParamExtractor ->
//	Validator -> Fixtures -> Synthesizer -> Shaping.post -> client
//
// The registry and document live behind atomic pointers: reload builds the
// new registry off to the side and publishes it in one store, so live
// requests always see a complete snapshot.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mockforge/mockforge/pkg/fixture"
	"github.com/mockforge/mockforge/pkg/infer"
	"github.com/mockforge/mockforge/pkg/logging"
	"github.com/mockforge/mockforge/pkg/router"
	"github.com/mockforge/mockforge/pkg/shaping"
	"github.com/mockforge/mockforge/pkg/spec"
	"github.com/mockforge/mockforge/pkg/synth"
	"github.com/mockforge/mockforge/pkg/validation"
)

// ErrBind wraps listener failures so the CLI can exit with the dedicated
// port-in-use code.
var ErrBind = errors.New("failed to bind listener")

// Server is the MockForge HTTP core.
type Server struct {
	cfg *Config
	log *slog.Logger

	doc      atomic.Pointer[spec.Document]
	registry atomic.Pointer[router.Registry]

	envelope    *shaping.Envelope
	synthesizer *synth.Synthesizer
	fixtures    *fixture.Watcher
	patterns    *infer.PatternStore
	inferencer  *infer.Inferencer

	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	running    bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithEnvelope replaces the shaping envelope.
func WithEnvelope(e *shaping.Envelope) Option {
	return func(s *Server) { s.envelope = e }
}

// WithSynthesizer replaces the response synthesizer.
func WithSynthesizer(sy *synth.Synthesizer) Option {
	return func(s *Server) { s.synthesizer = sy }
}

// WithInferencer replaces the inferencer used by the admin infer endpoint.
func WithInferencer(inf *infer.Inferencer) Option {
	return func(s *Server) { s.inferencer = inf }
}

// New creates a Server for the loaded document.
func New(cfg *Config, doc *spec.Document, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ValidationMode == "" {
		cfg.ValidationMode = validation.ModeAggregate
	}

	s := &Server{
		cfg:      cfg,
		log:      logging.Nop(),
		patterns: infer.NewPatternStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.envelope == nil {
		s.envelope = shaping.NewEnvelope(shaping.FromEnv(), shaping.WithPatternSource(s.patterns), shaping.WithLogger(s.log))
	}
	if s.synthesizer == nil {
		s.synthesizer = synth.New(synth.Options{Logger: s.log})
	}
	if s.inferencer == nil {
		s.inferencer = infer.New(infer.Config{Logger: s.log})
	}

	registry, err := router.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build route registry: %w", err)
	}
	s.doc.Store(doc)
	s.registry.Store(registry)

	watcher, err := fixture.NewWatcher(cfg.FixtureDir, s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to start fixture watcher: %w", err)
	}
	s.fixtures = watcher

	return s, nil
}

// Document returns the active spec document.
func (s *Server) Document() *spec.Document {
	return s.doc.Load()
}

// Registry returns the active route registry.
func (s *Server) Registry() *router.Registry {
	return s.registry.Load()
}

// Envelope returns the shaping envelope.
func (s *Server) Envelope() *shaping.Envelope {
	return s.envelope
}

// Patterns returns the learned-pattern store feeding the shaper.
func (s *Server) Patterns() *infer.PatternStore {
	return s.patterns
}

// Reload loads a new spec and atomically swaps registry and document.
// On any failure the previous state stays active and the report describes
// the problem.
func (s *Server) Reload(data []byte, hint string) *spec.ValidationReport {
	doc, report := spec.Load(data, hint)
	if doc == nil {
		return report
	}
	registry, err := router.Build(doc)
	if err != nil {
		return &spec.ValidationReport{
			Valid: false,
			Errors: []*spec.ValidationError{{
				Code:    spec.CodeAmbiguousPath,
				Message: err.Error(),
			}},
		}
	}

	s.doc.Store(doc)
	s.registry.Store(registry)
	s.log.Info("spec reloaded", "title", doc.Title, "operations", len(doc.Operations))
	return &spec.ValidationReport{Valid: true}
}

// Addr returns the listener address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves until Stop. Bind failures are
// reported as ErrBind; everything after a successful bind is a runtime
// error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBind, addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info("mockforge listening", "addr", listener.Addr().String())

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.running = false
	s.mu.Unlock()

	if s.fixtures != nil {
		_ = s.fixtures.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// IsRunning reports whether Start has been called and Stop has not.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
