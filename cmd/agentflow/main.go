package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	agentflow "github.com/shahintaesheikh/agentflow"
	"github.com/shahintaesheikh/agentflow/pkg/tools"
	"github.com/shahintaesheikh/agentflow/pkg/uploads"
	"github.com/shahintaesheikh/agentflow/src/cache"
	"github.com/shahintaesheikh/agentflow/src/config"
	"github.com/shahintaesheikh/agentflow/src/helpers"
	"github.com/shahintaesheikh/agentflow/src/logging"
	"github.com/shahintaesheikh/agentflow/src/memory"
	"github.com/shahintaesheikh/agentflow/src/memory/embed"
	"github.com/shahintaesheikh/agentflow/src/memory/store"
	"github.com/shahintaesheikh/agentflow/src/models"
)

const toolCacheEntries = 256

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	query         string
	image         string
	maxIterations int
	provider      string
	model         string
	index         string
	export        string
	envFile       string
	poll          time.Duration
}

// run returns the process exit code. Cancelling ctx cancels the research task.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("agentflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.query, "query", "", "Research query (defaults to the remaining arguments)")
	fs.StringVar(&opts.image, "image", "", "Optional screenshot to attach to the query")
	fs.IntVar(&opts.maxIterations, "max-iterations", 0, "Maximum model rounds (default from AGENTFLOW_MAX_ITERATIONS)")
	fs.StringVar(&opts.provider, "provider", "", "Model provider: anthropic, openai, gemini, ollama or dummy")
	fs.StringVar(&opts.model, "model", "", "Model ID")
	fs.StringVar(&opts.index, "index", "", "Comma separated text or markdown files to index for semantic_search")
	fs.StringVar(&opts.export, "export", "", "Write the result as JSON to this path")
	fs.StringVar(&opts.envFile, "env", ".env", "Optional .env file")
	fs.DurationVar(&opts.poll, "poll", 100*time.Millisecond, "How often to check whether the task is still running")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.query == "" {
		opts.query = strings.Join(fs.Args(), " ")
	}

	cfg, err := config.Load(opts.envFile)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	applyFlags(&cfg, opts)
	logger := logging.New(stderr, cfg.LogLevel)

	if strings.TrimSpace(opts.query) == "" {
		fmt.Fprintln(stderr, "Please enter a query")
		fs.Usage()
		return 2
	}

	harness, cleanup, err := setup(ctx, cfg, opts, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer cleanup()

	task, err := harness.Launch(ctx, opts.query, opts.image, cfg.MaxIterations, func(p agentflow.Progress) {
		fmt.Fprintln(stdout, helpers.FormatProgress(p))
	})
	if err != nil {
		logger.Error("launch failed", "error", err)
		return 1
	}

	wait(ctx, task, opts.poll)
	return report(task, opts.export, stdout, logger)
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.provider != "" {
		cfg.Provider = strings.ToLower(opts.provider)
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.maxIterations > 0 {
		cfg.MaxIterations = opts.maxIterations
	}
}

// setup wires the model, index and tools into a harness.
func setup(ctx context.Context, cfg config.Config, opts options, logger *slog.Logger) (*agentflow.Harness, func(), error) {
	model, err := models.NewProvider(ctx, cfg.Provider, cfg.Model, cfg.MaxTokens)
	if err != nil {
		return nil, nil, err
	}
	model = models.WithCache(model, cfg.LLMCacheSize, cfg.LLMCacheTTL)

	vs, err := store.Open(ctx, store.Config{
		Backend:    cfg.Index.Backend,
		DSN:        cfg.Index.DSN,
		Database:   cfg.Index.Database,
		Collection: cfg.Index.Collection,
		User:       cfg.Index.User,
		Password:   cfg.Index.Password,
		APIKey:     cfg.Index.APIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open index store: %w", err)
	}
	var embedder embed.Embedder
	if cfg.EmbedProvider != "" {
		if embedder, err = embed.New(ctx, cfg.EmbedProvider, cfg.EmbedModel); err != nil {
			vs.Close()
			return nil, nil, fmt.Errorf("embedder: %w", err)
		}
	} else {
		embedder = embed.AutoEmbedder(ctx, logger)
	}
	index := memory.NewIndex(vs, embedder, memory.WithLogger(logger))
	cleanup := func() {
		if err := index.Close(); err != nil {
			logger.Warn("closing index", "error", err)
		}
	}

	if paths := helpers.ParseCSVList(opts.index); len(paths) > 0 {
		docs, err := uploads.NewLoader(0).LoadDocuments(ctx, paths)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("load documents: %w", err)
		}
		gen, err := index.Build(ctx, docs)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("build index: %w", err)
		}
		logger.Info("semantic index ready", "generation", gen.ID, "documents", gen.Documents)
	}

	caps := tools.Capabilities{Index: index, SaveDir: cfg.SaveDir, Logger: logger}
	if cfg.ToolCacheTTL > 0 {
		caps.Cache = cache.NewLRUCache(toolCacheEntries, cfg.ToolCacheTTL)
	}
	toolset := tools.Builtins(caps)
	if cfg.UTCPProviders != "" {
		remote, err := tools.LoadUTCPTools(ctx, cfg.UTCPProviders)
		if err != nil {
			logger.Warn("remote tools unavailable", "providers", cfg.UTCPProviders, "error", err)
		} else {
			toolset = tools.MergeRemote(toolset, remote, logger)
		}
	}
	logger.Info("tools registered", "tools", helpers.ToolNames(toolset))

	agent, err := agentflow.New(agentflow.Options{
		Model:         model,
		Tools:         toolset,
		MaxIterations: cfg.MaxIterations,
		Logger:        logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return agentflow.NewHarness(agent, logger), cleanup, nil
}

// wait polls the task the way an interactive front end would, cancelling
// it once ctx is done.
func wait(ctx context.Context, task *agentflow.Task, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	interrupted := ctx.Done()
	for task.IsRunning() {
		select {
		case <-interrupted:
			task.Cancel()
			interrupted = nil
		case <-ticker.C:
		}
	}
	<-task.Done()
}

func report(task *agentflow.Task, exportPath string, stdout io.Writer, logger *slog.Logger) int {
	if task.Cancelled() {
		fmt.Fprintln(stdout, "Research cancelled.")
		return 130
	}
	result, ok := task.Result()
	code := 0
	if !ok {
		if result, ok = task.Failure(); !ok {
			logger.Error("task finished without a result")
			return 1
		}
		code = 1
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Error("encode result", "error", err)
		return 1
	}
	fmt.Fprintln(stdout, string(payload))

	if exportPath != "" {
		if err := agentflow.ExportResult(exportPath, result, time.Now()); err != nil {
			logger.Error("export failed", "path", exportPath, "error", err)
			return 1
		}
		logger.Info("result exported", "path", exportPath)
	}
	return code
}
