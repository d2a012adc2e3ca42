package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"newsradar/internal/config"
	"newsradar/internal/core"
	"newsradar/internal/llm"
	"newsradar/internal/persistence"
	"newsradar/internal/ranking"
	"newsradar/internal/tui"
)

var (
	analyseWindowHours int
	analyseTopK        int
	analyseAsync       bool
	analyseWatch       bool
)

var analyseCmd = &cobra.Command{
	Use:   "analyse",
	Short: "Run the Ranking & Enrichment Job over a lookback window",
	Long: `Score every cluster of articles published within the lookback
window, rank by final hotness, and enrich the top-K into publishable
Story drafts, printing the result as JSON to stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyse(cmd.Context())
	},
}

func init() {
	analyseCmd.Flags().IntVar(&analyseWindowHours, "window", 24, "lookback window in hours")
	analyseCmd.Flags().IntVar(&analyseTopK, "top-k", 10, "number of top clusters to enrich")
	analyseCmd.Flags().BoolVar(&analyseAsync, "async", false, "enrich the top-K concurrently")
	analyseCmd.Flags().BoolVar(&analyseWatch, "watch", false, "launch a live-updating terminal view instead of printing once")
	rootCmd.AddCommand(analyseCmd)
}

func runAnalyse(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := persistence.NewPostgresDB(cfg.Database.ConnectionString, cfg.Database.MaxConnections, cfg.Database.IdleConnections)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

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

	job := ranking.New(db.Articles(), db.Sources(), llmClient, nil, ranking.Config{
		HeuristicWeight: cfg.Scoring.HeuristicWeight,
		LearnedWeight:   cfg.Scoring.LearnedWeight,
	})

	window := time.Duration(analyseWindowHours) * time.Hour

	if analyseWatch {
		return tui.Watch(job, window, analyseTopK, 30*time.Second)
	}

	stories, totalClusters, totalArticles, err := job.Run(ctx, window, analyseTopK, analyseAsync)
	if err != nil {
		return fmt.Errorf("analyse: %w", err)
	}

	out := struct {
		Results               []core.Story `json:"results"`
		TotalClusters         int          `json:"total_clusters"`
		TotalArticlesAnalyzed int          `json:"total_articles_analyzed"`
	}{
		Results:               stories,
		TotalClusters:         totalClusters,
		TotalArticlesAnalyzed: totalArticles,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
