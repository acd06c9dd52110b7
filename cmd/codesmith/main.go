package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Strob0t/CodeSmith/internal/adapter/console"
	"github.com/Strob0t/CodeSmith/internal/adapter/memstore"
	"github.com/Strob0t/CodeSmith/internal/adapter/ollama"
	"github.com/Strob0t/CodeSmith/internal/adapter/postgres"
	"github.com/Strob0t/CodeSmith/internal/adapter/ristretto"
	"github.com/Strob0t/CodeSmith/internal/config"
	"github.com/Strob0t/CodeSmith/internal/domain/event"
	"github.com/Strob0t/CodeSmith/internal/logger"
	"github.com/Strob0t/CodeSmith/internal/port/cache"
	"github.com/Strob0t/CodeSmith/internal/port/store"
	"github.com/Strob0t/CodeSmith/internal/resilience"
	"github.com/Strob0t/CodeSmith/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		request   = flag.String("request", "", "modification request to execute")
		workspace = flag.String("workspace", "", "workspace root (empty provisions a session directory)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	log.Info("config loaded",
		"store", cfg.Store.Driver,
		"decision_url", cfg.Decision.BaseURL,
		"model", cfg.Decision.Model,
		"max_iterations", cfg.Orchestrator.MaxIterations,
	)

	if *request == "" {
		return fmt.Errorf("-request is required")
	}

	ctx := context.Background()

	// --- Task store ---
	var taskStore store.Store
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Store.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, cfg.Store.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		log.Info("postgres connected, migrations applied")
		taskStore = postgres.NewStore(pool)
	default:
		taskStore = memstore.New()
	}

	// --- Decision service ---
	decider := ollama.NewClient(cfg.Decision)
	decider.SetBreaker(resilience.NewBreaker(cfg.Decision.BreakerThreshold, cfg.Decision.BreakerCooldown))
	if ok, err := decider.Health(ctx); !ok {
		log.Warn("decision service unreachable, proceeding anyway", "error", err)
	} else if ok, _ := decider.ModelAvailable(ctx); !ok {
		log.Warn("configured model not found on decision service", "model", cfg.Decision.Model)
	}

	// --- Read cache ---
	var readCache cache.Cache
	if cfg.Tools.CacheEnabled {
		rc, err := ristretto.New(cfg.Tools.CacheMaxBytes)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		defer rc.Close()
		readCache = rc
	}

	mgr := service.NewManager(taskStore, decider, cfg, readCache, console.Stdin(), log)
	mgr.Workspaces().StartJanitor(ctx)

	// --- Run one task ---
	t, err := mgr.Create(ctx, *request, *workspace)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	fmt.Printf("task %s\nworkspace %s\n\n", t.ID, t.WorkspaceRoot)

	events, err := mgr.Execute(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("execute task: %w", err)
	}

	// First interrupt requests cancellation; the orchestrator stops at the
	// top of its next iteration. A second interrupt kills the process.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("cancellation requested")
		if err := mgr.Cancel(ctx, t.ID); err != nil {
			log.Warn("cancel", "error", err)
		}
		signal.Stop(sig)
	}()

	for ev := range events {
		printEvent(ev)
	}

	final, err := mgr.Get(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("final state: %w", err)
	}
	if final.Result != nil && !final.Result.Success {
		return fmt.Errorf("task finished unsuccessfully: %s", final.Result.Message)
	}
	if final.FailReason != "" {
		return fmt.Errorf("task failed (%s): %s", final.FailReason, final.Error)
	}
	return nil
}

// printEvent renders one stream event for the console.
func printEvent(ev event.Event) {
	switch p := ev.Payload.(type) {
	case event.IterationStart:
		fmt.Printf("--- iteration %d ---\n", p.Index)
	case event.Reasoning:
		fmt.Printf("reasoning: %s\n", p.Text)
	case event.ActionStart:
		fmt.Printf("  %s %s\n", p.Tool, p.Parameters)
	case event.ActionSuccess:
		fmt.Printf("  ok: %s\n", firstLine(p.Result))
	case event.ActionFailed:
		fmt.Printf("  failed [%s]: %s\n", p.ErrorKind, p.Error)
	case event.TaskCompleted:
		fmt.Printf("\ncompleted: %s\n", p.Message)
		if p.Summary != "" {
			fmt.Printf("summary: %s\n", p.Summary)
		}
		fmt.Printf("iterations=%d tool_calls=%d files_changed=%d tests_passed=%d tests_failed=%d\n",
			p.Stats.Iterations, p.Stats.ToolCalls, p.Stats.FilesChanged, p.Stats.TestsPassed, p.Stats.TestsFailed)
	case event.TaskFailed:
		fmt.Printf("\nfailed (%s): %s\n", p.Reason, p.Error)
	}
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
