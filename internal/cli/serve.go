package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pmartell/agentsched/internal/config"
	"github.com/pmartell/agentsched/internal/events"
	"github.com/pmartell/agentsched/internal/persistence"
	"github.com/pmartell/agentsched/internal/runner"
	"github.com/pmartell/agentsched/internal/scheduler"
	"github.com/pmartell/agentsched/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler daemon",
	Long: `Start the scheduler daemon: recover any state left by a previous
instance, then serve the HTTP API and dispatch ready tasks to agent
processes until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, err := config.LoadDefault()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.LogFormat)
	slog.SetDefault(logger)

	store, err := persistence.NewSQLiteStore(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	agents := runner.NewClaudeRunner(runner.Options{
		ClaudePath: cfg.ClaudePath,
		Model:      cfg.Model,
		LogMode:    cfg.LogMode,
	}, logger.With("component", "runner"))

	bus := events.NewEventBus()
	defer bus.Close()
	go logEvents(bus.SubscribeAll(64), logger.With("component", "events"))

	coord := scheduler.NewCoordinator(scheduler.CoordinatorConfig{
		Concurrency:      cfg.Concurrency,
		LogDir:           cfg.LogDir,
		TerminationGrace: time.Duration(cfg.GraceSeconds) * time.Second,
	}, store, agents, bus, logger.With("component", "scheduler"))

	// Recovery runs to completion before the API accepts work.
	if err := coord.Recover(ctx); err != nil {
		return fmt.Errorf("recovery: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := server.NewServer(addr, coord, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-coord.Fatal():
			return fmt.Errorf("scheduler: %w", err)
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.GraceSeconds+5)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		return coord.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(format string) *slog.Logger {
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	} else {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return slog.New(handler)
}

// logEvents turns bus traffic into log lines. The bus drops events for slow
// subscribers, so this can never stall the coordinator.
func logEvents(ch <-chan events.Event, logger *slog.Logger) {
	for ev := range ch {
		switch e := ev.(type) {
		case events.TaskSubmittedEvent:
			logger.Info("task submitted", "task_id", e.ID, "title", e.Title)
		case events.TaskStartedEvent:
			logger.Info("task started", "task_id", e.ID,
				"session_id", e.SessionID, "resumed", e.Resumed)
		case events.TaskCompletedEvent:
			logger.Info("task completed", "task_id", e.ID)
		case events.TaskFailedEvent:
			logger.Info("task failed", "task_id", e.ID,
				"exit_info", e.ExitInfo, "interrupted", e.Interrupted)
		case events.TaskCancelledEvent:
			logger.Info("task cancelled", "task_id", e.ID, "cascaded", e.Cascaded)
		case events.TaskResumedEvent:
			logger.Info("task resumed", "task_id", e.ID)
		case events.SchedulerProgressEvent:
			logger.Debug("progress", "total", e.Total, "pending", e.Pending,
				"running", e.Running, "completed", e.Completed,
				"failed", e.Failed, "cancelled", e.Cancelled)
		default:
			logger.Debug("event", "type", ev.EventType(), "task_id", ev.TaskID())
		}
	}
}
