package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newsradar/internal/annindex"
	"newsradar/internal/config"
	"newsradar/internal/llm"
	"newsradar/internal/logger"
	"newsradar/internal/persistence"
	"newsradar/internal/queue"
	"newsradar/internal/relevance"
	"newsradar/internal/worker"
)

var runWorkerCmd = &cobra.Command{
	Use:   "run-worker",
	Short: "Run the ingestion worker",
	Long: `Consume articles.new off the queue, run the prefilter / embed /
duplicate-check / persist / ANN-add pipeline for each, and reconcile the
in-memory ANN index against the Article Store at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runWorkerCmd)
}

func runWorker(ctx context.Context) error {
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

	manager, index, err := annindex.Open(cfg.ANN.SnapshotDir, cfg.ANN.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("open ann index: %w", err)
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM.APIKey, llm.Options{
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		EmbeddingDims:  int32(cfg.ANN.EmbeddingDim),
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.TimeoutDuration(),
	})
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}
	defer llmClient.Close()

	w := worker.New(
		q,
		db.Articles(),
		db.Sources(),
		index,
		manager,
		llmClient,
		relevance.NewKeywordPrefilter(),
		llmClient,
		worker.Config{
			SimilarityThreshold: cfg.Scoring.SimilarityThreshold,
			SnapshotEvery:       cfg.ANN.SnapshotEveryN,
			Prefetch:            cfg.Queue.Prefetch,
		},
	)

	n, err := w.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile ann index: %w", err)
	}
	log.Info("ann index reconciled", "added", n)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	log.Info("starting ingestion worker")
	if err := w.Run(runCtx); err != nil && runCtx.Err() == nil {
		return fmt.Errorf("worker run: %w", err)
	}

	log.Info("ingestion worker stopped")
	return nil
}
