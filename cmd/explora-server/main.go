package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mejiasimon/chatbotTravelAgency/internal/answer"
	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
	"github.com/mejiasimon/chatbotTravelAgency/internal/config"
	"github.com/mejiasimon/chatbotTravelAgency/internal/db"
	"github.com/mejiasimon/chatbotTravelAgency/internal/dialogue"
	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
	"github.com/mejiasimon/chatbotTravelAgency/internal/server"
	"github.com/mejiasimon/chatbotTravelAgency/internal/store"
)

const sweepInterval = time.Minute

func main() {
	cfg := config.Load()
	slog.SetDefault(newLogger(os.Stderr, cfg))

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, closeCatalog, err := buildCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCatalog()

	prices := catalog.NewPriceFormatter(cfg.PriceLocale)
	answers, err := buildAnswerer(cfg, prices)
	if err != nil {
		return err
	}
	script, err := dialogue.LoadScript(cfg.ScriptFile)
	if err != nil {
		return err
	}
	engine, err := dialogue.NewEngine(dialogue.Options{
		Catalog: cat,
		Answers: answers,
		Script:  script,
		Mode:    dialogue.Mode(cfg.ClassifierMode),
		Delays: dialogue.Delays{
			Welcome: cfg.WelcomeDelay,
			Reply:   cfg.ReplyDelay,
			Confirm: cfg.ConfirmDelay,
		},
		Prices:            prices,
		SignInURL:         cfg.SignInURL,
		GenerationTimeout: cfg.GenerationTimeout,
	})
	if err != nil {
		return fmt.Errorf("create dialogue engine: %w", err)
	}

	directory, err := identity.NewDirectory(identity.DefaultAccounts(), cfg.PasswordCost)
	if err != nil {
		return fmt.Errorf("create account directory: %w", err)
	}

	sessions := store.NewMemoryStore(cfg.SessionTTL)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sessions.Run(ctx, sweepInterval)
	}()

	s, err := server.NewServer(cfg, server.Deps{
		Engine:    engine,
		Catalog:   cat,
		Sessions:  sessions,
		Directory: directory,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Explora server listening",
			"addr", srv.Addr,
			"catalog", cfg.CatalogBackend,
			"answers", cfg.AnswerStrategy,
			"classifier", engine.Classifier().Mode(),
		)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown failed", "error", err)
		}
	}
	// Stops the sweeper, which closes every remaining conversation.
	stop()
	<-sweepDone
	return serveErr
}

func buildCatalog(ctx context.Context, cfg config.Config) (catalog.Store, func(), error) {
	noop := func() {}
	switch cfg.CatalogBackend {
	case "", "memory":
		return store.NewMemoryCatalog(catalog.Seed()), noop, nil
	case "file":
		return store.NewFileCatalog(cfg.CatalogFile, catalog.Seed()), noop, nil
	case "sql":
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect catalog database: %w", err)
		}
		closeDB := func() {
			if err := database.Close(); err != nil {
				slog.Warn("closing catalog database", "error", err)
			}
		}
		if err := database.RunMigrations(); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		dc := store.NewDatabaseCatalog(database)
		if err := dc.Seed(ctx, catalog.Seed()); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("seed catalog: %w", err)
		}
		slog.Info("catalog database ready", "driver", database.Driver())
		return dc, closeDB, nil
	default:
		return nil, nil, fmt.Errorf("unknown CATALOG_BACKEND %q", cfg.CatalogBackend)
	}
}

func buildAnswerer(cfg config.Config, prices *catalog.PriceFormatter) (*answer.Generator, error) {
	knowledge, err := answer.LoadKnowledge(cfg.KnowledgeFile)
	if err != nil {
		return nil, err
	}
	var strategy answer.Strategy
	switch cfg.AnswerStrategy {
	case "", "scripted":
		strategy = answer.NewScripted(knowledge, prices, cfg.ScriptedLatency)
	case "delegated":
		// Without a key every request falls back to the apology.
		if cfg.OpenAIAPIKey != "" {
			client := answer.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
			strategy = answer.NewDelegated(client, cfg.Model, knowledge, prices, cfg.GenerationTimeout)
		}
	default:
		return nil, fmt.Errorf("unknown ANSWER_STRATEGY %q", cfg.AnswerStrategy)
	}
	return answer.NewGenerator(strategy, knowledge.Apology), nil
}
