// mockforge serves mock APIs synthesized from OpenAPI specifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mockforge/mockforge/pkg/ai"
	"github.com/mockforge/mockforge/pkg/logging"
	"github.com/mockforge/mockforge/pkg/server"
	"github.com/mockforge/mockforge/pkg/spec"
	"github.com/mockforge/mockforge/pkg/synth"
)

// Build-time variables set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// Process exit codes.
const (
	exitOK      = 0
	exitConfig  = 1
	exitBind    = 2
	exitRuntime = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		host         string
		port         int
		fixtureDir   string
		realityLevel string
	)

	root := &cobra.Command{
		Use:           "mockforge",
		Short:         "Multi-protocol mock API server",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := &cobra.Command{
		Use:   "serve <spec-file>",
		Short: "Serve mock responses for an OpenAPI specification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveSpec(args[0], host, port, fixtureDir, realityLevel)
		},
	}
	serve.Flags().StringVar(&host, "host", "", "host to bind (default: MOCKFORGE_HTTP_HOST or all interfaces)")
	serve.Flags().IntVar(&port, "port", 0, "port to listen on (default: MOCKFORGE_HTTP_PORT or 3000)")
	serve.Flags().StringVar(&fixtureDir, "fixtures", "", "directory of fixture files to watch")
	serve.Flags().StringVar(&realityLevel, "reality", "", "response generator tier: template, faker or llm")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		return exitConfig
	}
	return exitOK
}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func serveSpec(specPath, host string, port int, fixtureDir, realityLevel string) error {
	log := logging.New(logging.FromEnv())

	cfg := server.FromEnv()
	if host != "" {
		cfg.Host = host
	}
	if port > 0 {
		cfg.Port = port
	}
	if fixtureDir != "" {
		cfg.FixtureDir = fixtureDir
	}

	doc, report, err := spec.LoadFromFile(specPath)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	if doc == nil {
		for _, e := range report.Errors {
			log.Error("spec validation failed", "path", e.Path, "code", e.Code, "message", e.Message)
		}
		return &exitError{code: exitConfig, err: report}
	}

	synthOpts := synth.Options{
		Level:  synth.ParseRealityLevel(realityLevel),
		Logger: log,
	}
	if aiCfg := ai.ConfigFromEnv(); aiCfg != nil {
		provider, err := ai.NewProvider(aiCfg)
		if err != nil {
			return &exitError{code: exitConfig, err: fmt.Errorf("LLM provider configuration: %w", err)}
		}
		synthOpts.Provider = provider
		if synthOpts.Level == synth.LevelTemplate && realityLevel == "" {
			synthOpts.Level = synth.LevelLlm
		}
		log.Info("LLM augmentation enabled", "provider", provider.Name())
	}

	srv, err := server.New(cfg, doc,
		server.WithLogger(log),
		server.WithSynthesizer(synth.New(synthOpts)),
	)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err == nil {
			return nil
		}
		if errors.Is(err, server.ErrBind) {
			return &exitError{code: exitBind, err: err}
		}
		return &exitError{code: exitRuntime, err: err}
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			return &exitError{code: exitRuntime, err: err}
		}
		return nil
	}
}
