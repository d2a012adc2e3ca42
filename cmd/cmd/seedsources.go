package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"newsradar/internal/config"
	"newsradar/internal/logger"
	"newsradar/internal/persistence"
)

// defaultSource is one entry of the built-in source list seed-sources loads.
// Reputation scores are starting points; UpdateReputation adjusts them over
// time as a source's track record is observed.
type defaultSource struct {
	name       string
	baseURL    string
	reputation float64
}

var defaultSources = []defaultSource{
	{"Reuters", "https://www.reuters.com", 0.9},
	{"Bloomberg", "https://www.bloomberg.com", 0.9},
	{"Financial Times", "https://www.ft.com", 0.85},
	{"Wall Street Journal", "https://www.wsj.com", 0.85},
	{"Associated Press", "https://apnews.com", 0.8},
	{"CNBC", "https://www.cnbc.com", 0.7},
	{"MarketWatch", "https://www.marketwatch.com", 0.65},
	{"RBC", "https://www.rbc.ru", 0.6},
	{"Interfax", "https://www.interfax.ru", 0.6},
}

var seedSourcesCmd = &cobra.Command{
	Use:   "seed-sources",
	Short: "Load the built-in source list with default reputations",
	Long: `Populate the source registry with a starter set of financial-news
sources and their default reputation scores. Safe to re-run: creation is
idempotent, though reputations are reset to the seed values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeedSources(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(seedSourcesCmd)
}

func runSeedSources(ctx context.Context) error {
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

	sources := db.Sources()
	for _, s := range defaultSources {
		src, err := sources.GetOrCreate(ctx, s.name, s.baseURL)
		if err != nil {
			return fmt.Errorf("seed source %q: %w", s.name, err)
		}
		if err := sources.UpdateReputation(ctx, src.ID, s.reputation); err != nil {
			return fmt.Errorf("set reputation for %q: %w", s.name, err)
		}
		log.Info("seeded source", "name", s.name, "reputation", s.reputation)
	}

	fmt.Printf("seeded %d sources\n", len(defaultSources))
	return nil
}
