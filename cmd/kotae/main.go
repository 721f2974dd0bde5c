// Package main is the kotae CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/snapshot"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "index":
		runIndex()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads the config and builds the logger shared by every local command.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (cache rebuilds, watch events, provider retries)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srv *server.Server
	components, err := initializeComponents(cfg, logger)
	switch {
	case err == nil:
		defer components.Close()
		srv = server.NewServer(components.Engine, components.Cache, &cfg.Server, logger)
		if components.Dirs != nil && cfg.Watch.Enabled {
			startWatcher(ctx, components, cfg, logger)
		}
		components.Cache.Warm()
	case errors.Is(err, models.ErrProviderUnavailable):
		// A missing credential keeps the server up so /status can say what to configure.
		logger.Warn("provider not configured, serving configuration_required", zap.Error(err))
		srv = server.NewServer(nil, nil, &cfg.Server, logger,
			server.WithConfigError(err),
			server.WithModels(llm.ConfiguredModelName(cfg.Generation), embedding.ConfiguredModelName(cfg.Embedding)))
	default:
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = srv.Stop(stopCtx)
}

// startWatcher invalidates the retrieval cache whenever a course directory changes.
func startWatcher(ctx context.Context, c *Components, cfg *config.Config, logger *zap.Logger) {
	cache := c.Cache
	w := watcher.NewWatcher(
		c.Dirs.Roots(),
		c.Dirs.IsCourseFile,
		func(paths []string) {
			logger.Debug("invalidating retrieval cache", zap.Strings("paths", paths))
			cache.Invalidate()
			cache.Warm()
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Watch.Debounce.D()),
	)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
}

// printAskUsage prints ask subcommand usage.
func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces, with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
The answer is built locally from the configured course store; no server is needed.
An offline index (kotae index) is used when it matches the embedding model.

Examples:
  kotae ask what is machine learning
  kotae ask "How long should pasta boil?" --json
`)
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the question
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "kotae ask what is ml --json"
// would otherwise leave --json unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// outputFormat maps the --json flag to a cli.OutputFormat.
func outputFormat(asJSON bool) cli.OutputFormat {
	if asJSON {
		return cli.OutputJSON
	}
	return cli.OutputText
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	asJSON := fs.Bool("json", false, "print the /ask response body as JSON")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if !cfg.Debug && !*debug {
		// Keep the terminal for the answer; warnings still go to stderr.
		logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	ans, err := components.Engine.Answer(ctx, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", askErrorMessage(err))
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, ans, time.Since(start), outputFormat(*asJSON)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// askErrorMessage turns an answer failure into one line for the terminal.
func askErrorMessage(err error) string {
	switch models.Kind(err) {
	case "validation":
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return "Invalid question: " + ve.Message
		}
	case "rate_limited":
		if d := models.RetryAfter(err); d > 0 {
			return fmt.Sprintf("Provider is busy, try again in %s: %v", d.Round(time.Second), err)
		}
		return fmt.Sprintf("Provider is busy, try again shortly: %v", err)
	case "unavailable", "retrieval_unavailable":
		return fmt.Sprintf("Temporarily unavailable: %v", err)
	case "canceled":
		return "Canceled"
	}
	return fmt.Sprintf("Failed to generate an answer: %v", err)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	out := fs.String("out", "", "index directory (default: index.path from config)")
	asJSON := fs.Bool("json", false, "print the written manifest as JSON")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()

	dir := cfg.Index.Path
	if *out != "" {
		dir = *out
	}

	components, err := initializePipeline(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	builder := snapshot.NewBuilder(components.Source, components.Pipeline, snapshot.WithLogger(logger))
	m, err := builder.Build(ctx, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Printf("Indexed %d course(s) into %d chunk(s) with %s (%d dims) in %s\n",
		m.Documents, m.Chunks, m.Model, m.Dimensions, time.Since(start).Round(time.Millisecond))
	fmt.Printf("Generation %s written to %s\n", m.GenerationID, dir)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	asJSON := fs.Bool("json", false, "print the /status response as JSON")
	_ = fs.Parse(os.Args[2:])

	status, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, outputFormat(*asJSON)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*models.StatusResponse, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(strings.TrimRight(serverURL, "/") + "/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s models.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func printUsage() {
	fmt.Println(`kotae - Question answering over published course material

Usage:
  kotae server [flags]            Start the HTTP server
  kotae ask [flags] <question>    Answer a question locally
  kotae index [flags]             Build the offline index
  kotae status [flags]            Show status of a running server
  kotae version                   Show version
  kotae help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path
  --debug            Enable debug logging
  --json             Print the /ask response body as JSON

Index Flags:
  --config string    Config file path
  --debug            Enable debug logging
  --out string       Index directory (default: index.path from config)
  --json             Print the written manifest as JSON

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --json             Print the /status response as JSON

Examples:
  kotae server
  kotae ask "What is machine learning?"
  kotae ask --json how long should pasta boil
  kotae index
  kotae status --json`)
}
