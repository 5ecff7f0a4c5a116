// Muleguard - graph-based money-muling and fraud-ring detection.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/muleguard/internal/api"
	"github.com/opensource-finance/muleguard/internal/bus"
	"github.com/opensource-finance/muleguard/internal/cache"
	"github.com/opensource-finance/muleguard/internal/customrules"
	"github.com/opensource-finance/muleguard/internal/domain"
	"github.com/opensource-finance/muleguard/internal/repository"
	"github.com/opensource-finance/muleguard/internal/worker"
)

// Version information (set via ldflags).
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("MULEGUARD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting muleguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := domain.DefaultAppConfig()

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	velocityCache, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize velocity cache", "error", err)
		os.Exit(1)
	}
	defer velocityCache.Close()
	slog.Info("velocity cache initialized", "type", cfg.Cache.Type)

	// The HTTP result cache is a separate instance from the velocity
	// cache — see domain.Cache's doc comment.
	resultCache := cache.NewLRUCache(cfg.Cache.LocalMaxSize)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	rulesEngine, err := customrules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize custom rule engine", "error", err)
		os.Exit(1)
	}

	if err := loadRulesFromRepository(ctx, repo, rulesEngine); err != nil {
		slog.Error("failed to load custom rules", "error", err)
		os.Exit(1)
	}
	slog.Info("custom rule engine initialized", "rules_count", rulesEngine.RulesCount())

	asyncWorker := worker.NewWorker(busImpl, rulesEngine, cfg.Pipeline, 5)
	if err := asyncWorker.Start(); err != nil {
		slog.Error("failed to start async worker", "error", err)
		os.Exit(1)
	}
	slog.Info("async worker started")

	srv := api.NewServer(cfg.Server, repo, resultCache, busImpl, rulesEngine, cfg.Pipeline, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("muleguard is ready", "host", cfg.Server.Host, "port", cfg.Server.Port)
	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("muleguard shutdown complete")
}

// loadRulesFromRepository loads custom overlay rules persisted in the
// repository into the engine. All rules are configured via POST /rules —
// there are no hardcoded defaults.
func loadRulesFromRepository(ctx context.Context, repo domain.Repository, engine *customrules.Engine) error {
	rules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rule configs from repository", "error", err)
		return nil
	}

	if len(rules) > 0 {
		slog.Info("loading custom rules from repository", "count", len(rules))
		return engine.LoadRules(rules)
	}

	slog.Info("no custom rules in repository - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.AppConfig, version string) {
	fmt.Println()
	fmt.Println("  muleguard")
	fmt.Println("  graph-based money-muling and fraud-ring detection")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /batches          - run a transaction batch through the pipeline")
	fmt.Println("    GET    /batches/{id}     - retrieve a previously run batch's result")
	fmt.Println("    GET    /rules            - list custom overlay rules")
	fmt.Println("    POST   /rules            - create a custom overlay rule")
	fmt.Println("    DELETE /rules/{id}       - delete a custom overlay rule")
	fmt.Println("    POST   /rules/reload     - hot-reload rules from the repository")
	fmt.Println("    GET    /health           - health check")
	fmt.Println("    GET    /ready            - readiness check")
	fmt.Println()
}
