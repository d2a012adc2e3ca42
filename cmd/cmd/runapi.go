package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newsradar/internal/annindex"
	"newsradar/internal/api"
	"newsradar/internal/config"
	"newsradar/internal/llm"
	"newsradar/internal/logger"
	"newsradar/internal/persistence"
	"newsradar/internal/ranking"
	"newsradar/internal/relevance"
	"newsradar/internal/worker"
)

var runAPICmd = &cobra.Command{
	Use:   "run-api",
	Short: "Serve the HTTP API",
	Long: `Start the HTTP server exposing /health, /ingest, and /analyse.
/ingest runs a single article through the same pipeline as run-worker,
synchronously; /analyse runs the Ranking & Enrichment Job on demand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPI(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runAPICmd)
}

func runAPI(ctx context.Context) error {
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
		nil, // the API only drives IngestSync; no queue consumer needed
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
		},
	)

	job := ranking.New(db.Articles(), db.Sources(), llmClient, nil, ranking.Config{
		HeuristicWeight: cfg.Scoring.HeuristicWeight,
		LearnedWeight:   cfg.Scoring.LearnedWeight,
	})

	srv := api.New(w, job, cfg.Scoring.HotThreshold, cfg.Server.WriteTimeout)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting api server", "addr", httpServer.Addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	log.Info("api server stopped")
	return nil
}
