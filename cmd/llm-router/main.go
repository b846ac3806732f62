// Command llm-router runs the HTTP front-end that routes OpenAI- and
// Anthropic-shaped chat requests across configured providers.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router/internal/amproute"
	"github.com/tributary-ai/llm-router/internal/config"
	"github.com/tributary-ai/llm-router/internal/handler"
	"github.com/tributary-ai/llm-router/internal/metrics"
	"github.com/tributary-ai/llm-router/internal/pruner"
	"github.com/tributary-ai/llm-router/internal/server"
	"github.com/tributary-ai/llm-router/internal/statestore"
	"github.com/tributary-ai/llm-router/internal/translate"
)

// Application wires every component together for one run of the process.
type Application struct {
	config  *config.RuntimeConfig
	logger  *logrus.Logger
	store   statestore.Store
	pruner  *pruner.Scheduler
	server  *server.Server
}

// NewApplication loads configuration and constructs every component.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	store, err := newStateStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}

	namespace := cfg.Metrics.Namespace
	if namespace == "" {
		namespace = "llm_router"
	}
	m := metrics.New(namespace, prometheus.DefaultRegisterer)

	h := handler.New(cfg, store, m, translate.New(), amproute.New(cfg.AmpRouting), &http.Client{}, logger)

	srv, err := server.New(cfg, h, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config: cfg,
		logger: logger,
		store:  store,
		pruner: pruner.New(store, m, logger),
		server: srv,
	}, nil
}

// Run starts the HTTP server and the prune scheduler, and blocks until a
// shutdown signal or a fatal server error.
func (app *Application) Run() error {
	app.logger.Info("starting llm-router")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.pruner.Start(ctx, app.config.State.Prune.Cron); err != nil {
		return fmt.Errorf("failed to start state prune scheduler: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		if err := app.server.Start(); err != nil {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("shutdown signal received")
	}

	app.logger.Info("starting graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := app.store.Close(); err != nil {
		app.logger.WithError(err).Warn("state store close failed")
	}

	app.logger.Info("graceful shutdown complete")
	return nil
}

func newStateStore(cfg *config.RuntimeConfig, logger *logrus.Logger) (statestore.Store, error) {
	ttlMs := cfg.State.CandidateStateTTL.Milliseconds()
	switch cfg.State.Backend {
	case "file":
		return statestore.NewFileStore(cfg.State.FilePath, ttlMs, logger)
	default:
		return statestore.NewMemoryStore(ttlMs), nil
	}
}

func setupLogger(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", level, err)
	}
	logger.SetLevel(parsed)

	switch cfg.Format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	switch cfg.Output {
	case "", "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(file)
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_CONFIG_JSON             Inline JSON configuration\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_MASTER_KEY              Master API key override\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_STATE_BACKEND           memory|file\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_STATE_FILE_PATH         Path to the file state store\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_CANDIDATE_STATE_TTL_MS  Candidate state TTL override\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_DEBUG_ROUTING           1 to emit debug routing headers\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_ORIGIN_RETRY_ATTEMPTS   Same-candidate retry attempts\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_MAX_REQUEST_BODY_BYTES  Max inbound request body size\n")
	fmt.Fprintf(os.Stderr, "  LLM_ROUTER_REQUEST_TIMEOUT_MS      Per-upstream-attempt timeout\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config config.yaml\n", os.Args[0])
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}
	if *version {
		fmt.Println("llm-router v1.0.0")
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}
