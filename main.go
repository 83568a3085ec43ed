package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videoquery/agent"
	"videoquery/api"
	"videoquery/config"
	"videoquery/search"
	"videoquery/task"
	"videoquery/workflow"

	"github.com/lmittmann/tint"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)

	if cfg.TempDir == "" {
		dir, err := os.MkdirTemp("", "videoquery_")
		if err != nil {
			fatal("failed to create temp dir", err)
		}
		defer os.RemoveAll(dir)
		cfg.TempDir = dir
	}

	// 2. Build the agent and the workflow around it
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ag, files, err := newAgent(ctx, cfg)
	if err != nil {
		fatal("failed to initialize agent", err)
	}
	wf := workflow.New(ag, files, workflow.Options{
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
	})

	// 3. Initialize task manager
	taskManager, err := task.NewManager(cfg, wf)
	if err != nil {
		fatal("failed to initialize task manager", err)
	}

	// 4. Set up router and server
	router := api.SetupRouter(wf, taskManager, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	taskManager.Start(ctx)

	go func() {
		slog.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("agent", cfg.AgentProvider),
			slog.String("model", cfg.Model),
			slog.String("search", cfg.SearchProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("listen", err)
		}
	}()

	// 5. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	stop()
	slog.Info("shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.Any("error", err))
	}

	slog.Info("server exiting")
}

// newAgent returns the configured backend and, when it can take uploads, its file store.
func newAgent(ctx context.Context, cfg *config.Config) (agent.Agent, agent.FileStore, error) {
	var searcher agent.Searcher
	if cfg.SearchProvider == config.SearchDuckDuckGo {
		searcher = search.NewDuckDuckGo(search.Config{
			MaxResults:    cfg.SearchMaxResults,
			RatePerSecond: cfg.SearchRate,
		})
	}

	switch cfg.AgentProvider {
	case config.ProviderOpenAI:
		ag, err := agent.NewOpenAI(agent.OpenAIConfig{
			APIKey:        cfg.APIKey(),
			BaseURL:       cfg.OpenAIBaseURL,
			Model:         cfg.Model,
			Searcher:      searcher,
			MaxToolRounds: cfg.MaxToolRounds,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Warn("openai agent cannot read uploaded videos, only URL questions will succeed")
		return ag, nil, nil
	default:
		ag, err := agent.NewGemini(ctx, agent.GeminiConfig{
			APIKey:        cfg.APIKey(),
			BaseURL:       cfg.GeminiBaseURL,
			Model:         cfg.Model,
			Searcher:      searcher,
			GoogleSearch:  cfg.SearchProvider == config.SearchGoogle,
			MaxToolRounds: cfg.MaxToolRounds,
		})
		if err != nil {
			return nil, nil, err
		}
		return ag, ag.Files(), nil
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	})))
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
