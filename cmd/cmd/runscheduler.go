package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newsradar/internal/config"
	"newsradar/internal/fetch"
	"newsradar/internal/logger"
	"newsradar/internal/persistence"
	"newsradar/internal/queue"
	"newsradar/internal/scheduler"
)

var runSchedulerCmd = &cobra.Command{
	Use:   "run-scheduler",
	Short: "Run the source scheduler",
	Long: `Poll every configured source on one shared interval, all sources
concurrently on each tick, and publish newly discovered article URLs to
the queue for the Ingestion Worker.

One Generic scraper is built per persisted source, using its base URL as
the listing page and "a" as the link selector. Per-site scraping details
beyond that generic fetch are out of scope.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScheduler(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runSchedulerCmd)
}

func runScheduler(ctx context.Context) error {
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := persistence.NewPostgresDB(cfg.Database.ConnectionString, cfg.Database.MaxConnections, cfg.Database.IdleConnections)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	q, err := queue.Connect(ctx, queue.Config{
		URL:           cfg.Queue.URL,
		StreamName:    cfg.Queue.StreamName,
		ConsumerName:  cfg.Queue.ConsumerName,
		SubjectPrefix: cfg.Queue.SubjectPrefix,
		MaxRedeliver:  cfg.Queue.MaxRedeliver,
	})
	if err != nil {
		return fmt.Errorf("connect to queue: %w", err)
	}
	defer q.Close()

	sources, err := db.Sources().List(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources configured; run seed-sources first")
	}

	scrapers := make([]fetch.Scraper, len(sources))
	for i, src := range sources {
		scrapers[i] = fetch.NewGeneric(src.Name, src.BaseURL, "a")
	}

	sched := scheduler.New(scrapers, db.Sources(), db.Articles(), q, scheduler.Config{
		Interval:          time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute,
		RunTimeout:        time.Duration(cfg.Scheduler.RunTimeoutSeconds) * time.Second,
		DisableAfterFails: cfg.Scheduler.DisableAfterFails,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	log.Info("starting source scheduler", "sources", len(sources))
	if err := sched.Run(runCtx); err != nil && runCtx.Err() == nil {
		return fmt.Errorf("scheduler run: %w", err)
	}

	log.Info("source scheduler stopped")
	return nil
}
