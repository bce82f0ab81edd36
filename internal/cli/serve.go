package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vocabamas/amas/internal/amas/engine"
	"github.com/vocabamas/amas/internal/amas/sched"
	"github.com/vocabamas/amas/internal/api"
	"github.com/vocabamas/amas/internal/daemon"
	"github.com/vocabamas/amas/internal/domain"
	"github.com/vocabamas/amas/internal/infra/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("config", "c", "", "Path to a TOML config file (optional; env overrides still apply)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the amasd HTTP API and background workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Store.DSN, cfg.Store.CacheSize)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	// No native accelerator is registered with this build; AMAS_USE_NATIVE
	// is honoured by leaving native nil either way, so the smart router
	// degrades to the pure-Go fallback for every operation, same as it
	// would in production before a native extension is deployed.
	var native domain.NativeAccelerator

	e := engine.NewEngine(engine.DefaultConfig(), db, native)

	s := api.NewServer(e)
	if cfg.Telemetry.Mode != daemon.TelemetryNoop {
		s.EnableMetrics()
	}

	scheduler := sched.NewScheduler(sched.DefaultConfig())
	schedCtx, cancelSched := context.WithCancel(context.Background())
	go scheduler.Run(schedCtx)

	cron := daemon.NewCron(scheduler, cfg.Worker, nil, func(nowMS int64) {
		e.DrainRewards(nowMS)
	}, func(ctx context.Context) {
		if !cfg.Worker.Leader || !cfg.Worker.EnableForgettingAlert {
			return
		}
		for _, userID := range e.ActiveUserIDs() {
			if _, err := e.CheckForgetting(ctx, userID); err != nil {
				log.Printf("[amasd] forgetting check failed for %s: %v", userID, err)
			}
		}
	})
	cronCtx, cancelCron := context.WithCancel(context.Background())
	go cron.Run(cronCtx)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[amasd] listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigCh:
		log.Println("[amasd] shutting down")
	}

	// Graceful shutdown sequence (spec §5): stop accepting new requests,
	// flush the reward queue, flush metric queues (the scheduler's own
	// queues drain as part of stopping it), stop cron ticks, close
	// persistence, exit.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[amasd] http shutdown: %v", err)
	}

	e.Shutdown(time.Now().UnixMilli())

	scheduler.Stop()
	for _, q := range []sched.QueueName{sched.QueueRewardDrain, sched.QueueMetricsFlush} {
		for scheduler.QueueLen(q) > 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	scheduler.StopLoop()
	cancelSched()

	cron.Stop()
	cancelCron()

	return nil
}
