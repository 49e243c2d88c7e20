// cmd/discord/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"katu-bot/internal/ai"
	"katu-bot/internal/chat"
	"katu-bot/internal/command"
	"katu-bot/internal/config"
	"katu-bot/internal/dashboard"
	"katu-bot/internal/discord"
	"katu-bot/internal/mind"
	"katu-bot/internal/storage"
	v "katu-bot/internal/version"
	"katu-bot/pkg/cmd"
	"katu-bot/pkg/jobmgr"
	"katu-bot/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.New()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting bot", zap.String("app", v.AppName), zap.String("version", v.Version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close storage", zap.Error(err))
		}
	}()

	jobs := jobmgr.NewManager(ctx, func(msg string) {
		log.Named("jobs").Info(msg)
	})

	var (
		engine       *mind.Engine
		conversation discord.Conversation
		commandMind  command.Mind
		dashMind     dashboard.Mind
	)
	if cfg.AI.Enabled {
		engine, err = newEngine(ctx, cfg.AI, log)
		if err != nil {
			log.Fatal("failed to create conversation engine", zap.Error(err))
		}
		conversation = chat.NewHandler(engine, chat.Options{
			Policy: chat.Policy{
				WakeWord:  cfg.WakeWord,
				Chance:    cfg.AI.RespondChance,
				MinLength: cfg.AI.RespondMinLength,
			},
			ReleaseDelay: cfg.AI.InflightReleaseDelay,
			ChunkDelay:   cfg.AI.ChunkDelay,
			Logger:       log,
		})
		commandMind, dashMind = engine, engine

		sweep := cfg.AI.HistorySweepInterval
		if err := jobs.StartAsync("history-sweeper", func(ctx context.Context) error {
			return engine.RunSweeper(ctx, sweep)
		}); err != nil {
			log.Fatal("failed to start sweeper", zap.Error(err))
		}
	} else {
		log.Info("conversational replies disabled")
	}

	registry := cmd.NewRegistry()
	if err := command.Register(registry, command.Deps{
		Store:  store,
		Mind:   commandMind,
		Prefix: cfg.CommandPrefix,
		Logger: log,
	}); err != nil {
		log.Fatal("failed to register commands", zap.Error(err))
	}

	bot := discord.NewBot(discord.Options{
		Config:   cfg,
		Store:    store,
		Commands: command.NewDispatcher(registry, cfg.CommandPrefix, log),
		Chat:     conversation,
		Logger:   log,
	})

	if err := jobs.StartAsync("daily-reset", func(ctx context.Context) error {
		return discord.RunDailyReset(ctx, time.Now, bot.DailyReset)
	}); err != nil {
		log.Fatal("failed to start daily reset", zap.Error(err))
	}

	if cfg.DashboardAddr != "" {
		router := dashboard.NewRouter(dashboard.Options{
			Prefix:          cfg.CommandPrefix,
			ResponseTimeout: cfg.AI.Timeout,
			Mind:            dashMind,
			Store:           store,
			StartedAt:       time.Now(),
			Logger:          log,
		})
		if err := jobs.StartAsync("dashboard", func(ctx context.Context) error {
			return dashboard.Serve(ctx, cfg.DashboardAddr, router, log.Named("dashboard"))
		}); err != nil {
			log.Fatal("failed to start dashboard", zap.Error(err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info("received signal, shutting down", zap.String("signal", s.String()))
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error("discord bot error", zap.Error(err))
		}
		cancel()
	case <-ctx.Done():
	}

	<-errCh
	jobs.StopAll()
	jobs.Wait()
	log.Info("discord bot exited cleanly")
}

// newEngine builds the completer and the conversation engine from cfg.
func newEngine(ctx context.Context, cfg config.AIConfig, log *zap.Logger) (*mind.Engine, error) {
	completer, err := ai.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	window := mind.NewWindow(mind.WindowConfig{
		Duration:   cfg.DuplicateWindow,
		MaxEntries: cfg.DuplicateMaxResponses,
		Threshold:  cfg.SimilarityThreshold,
	}, time.Now)
	return mind.NewEngine(completer, mind.NewHistory(cfg.HistoryMaxTurns), window, mind.Options{
		Personality: mind.DefaultPersonality(),
		Params: ai.Params{
			Model:           cfg.Model,
			Temperature:     float32(cfg.Temperature),
			MaxOutputTokens: int32(cfg.MaxOutputTokens),
			TopP:            float32(cfg.TopP),
			TopK:            float32(cfg.TopK),
		},
		ContextTurns:     cfg.HistoryContextTurns,
		HistoryRetention: cfg.HistoryRetention,
		Logger:           log,
	}), nil
}
