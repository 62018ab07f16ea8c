package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rosescout/rosescout/cmd/rosescout/api"
	"github.com/rosescout/rosescout/cmd/rosescout/config"
	"github.com/rosescout/rosescout/orchestrate"
	"github.com/rosescout/rosescout/orchestrate/prompt"
	anthropicprovider "github.com/rosescout/rosescout/providers/anthropic"
	"github.com/rosescout/rosescout/providers/gemini"
	"github.com/rosescout/rosescout/tools"
)

// defaultResearchPrompt serves installs that have not configured a prompt
// directory. It mirrors the shape every named template is expected to have:
// placeholders for the submission parameters and an instruction to answer
// in JSON with per-finding reference fields.
const defaultResearchPrompt = `Research the entity "{{name}}". Use the available tools to verify
locations, screen against export control lists and gather public web
evidence. Respond with a single JSON object. For every finding include a
"reference" field naming the tool output or URL that supports it.`

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zapLogger(cfg.RequestLogVerbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ledger := orchestrate.NewLedger()
	table := orchestrate.NewTable()

	clients := tools.NewClients(tools.ConfigFromEnv())
	if err := table.Register(clients.Adapters()...); err != nil {
		logger.Fatal("register capabilities", zap.Error(err))
	}

	generator, err := newGenerator(cfg)
	if err != nil {
		logger.Fatal("provider", zap.Error(err))
	}

	store, err := newPromptStore(cfg)
	if err != nil {
		logger.Fatal("prompt store", zap.Error(err))
	}

	scheduler, err := orchestrate.NewScheduler(ledger, table, generator, store)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	server := api.NewServer(logger, ledger, table, scheduler, api.Options{
		DefaultModel:  cfg.Model,
		DefaultPrompt: cfg.DefaultPrompt,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("provider", cfg.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func zapLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newGenerator(cfg config.Config) (orchestrate.Generator, error) {
	switch cfg.Provider {
	case "anthropic":
		pc := anthropicprovider.ConfigFromEnv()
		pc.MaxToolTurns = cfg.MaxToolTurns
		if pc.Model == "" {
			pc.Model = cfg.Model
		}
		return anthropicprovider.New(pc)
	default:
		pc := gemini.ConfigFromEnv()
		pc.MaxToolTurns = cfg.MaxToolTurns
		if pc.Model == "" {
			pc.Model = cfg.Model
		}
		return gemini.New(pc)
	}
}

func newPromptStore(cfg config.Config) (prompt.Store, error) {
	if cfg.PromptDir != "" {
		if _, err := os.Stat(cfg.PromptDir); err != nil {
			return nil, err
		}
		return prompt.FileSource{Root: cfg.PromptDir}, nil
	}
	store := prompt.NewMemoryStore()
	store.Add(cfg.DefaultPrompt, defaultResearchPrompt)
	return store, nil
}
