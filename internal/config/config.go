// Package config centralises all application configuration: database and
// queue connection strings, LLM/embedding endpoints, and the tunable
// thresholds of the scoring and scheduling components.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       App       `mapstructure:"app"`
	Database  Database  `mapstructure:"database"`
	Queue     Queue     `mapstructure:"queue"`
	LLM       LLM       `mapstructure:"llm"`
	Scoring   Scoring   `mapstructure:"scoring"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Server    Server    `mapstructure:"server"`
	ANN       ANN       `mapstructure:"ann"`
}

// App holds general application configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// Database holds the relational store connection settings (Article Store,
// Metadata Store).
type Database struct {
	ConnectionString string `mapstructure:"connection_string"`
	MaxConnections   int    `mapstructure:"max_connections"`
	IdleConnections  int    `mapstructure:"idle_connections"`
}

// Queue holds the work-queue connection settings shared by the scheduler
// (publish side) and the ingestion worker (consume side).
type Queue struct {
	URL           string `mapstructure:"url"`
	StreamName    string `mapstructure:"stream_name"`
	ConsumerName  string `mapstructure:"consumer_name"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	Prefetch      int    `mapstructure:"prefetch"`
	MaxRedeliver  int    `mapstructure:"max_redeliver"`
}

// LLM holds the embedding + enrichment model configuration.
type LLM struct {
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	Timeout        string  `mapstructure:"timeout"`
	MaxTokens      int32   `mapstructure:"max_tokens"`
	Temperature    float32 `mapstructure:"temperature"`
}

// TimeoutDuration parses Timeout, defaulting to 30s on a bad/empty value.
func (l LLM) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(l.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Scoring holds the hotness-scoring thresholds and blend weights.
type Scoring struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"` // minimum cosine similarity to join a cluster
	HotThreshold        float64 `mapstructure:"hot_threshold"`        // minimum final score for a cluster to count as hot
	HeuristicWeight     float64 `mapstructure:"heuristic_weight"`     // default 0.7
	LearnedWeight       float64 `mapstructure:"learned_weight"`       // default 0.3
	TopK                int     `mapstructure:"top_k"`
}

// Scheduler holds the Source Scheduler's loop and failure-handling tunables.
type Scheduler struct {
	IntervalMinutes   int `mapstructure:"interval_minutes"`
	RunTimeoutSeconds int `mapstructure:"run_timeout_seconds"`
	DisableAfterFails int `mapstructure:"disable_after_fails"`
}

// Server holds HTTP server configuration.
type Server struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ANN holds the in-memory vector index's persistence tunables.
type ANN struct {
	SnapshotDir    string `mapstructure:"snapshot_dir"`
	SnapshotEveryN int    `mapstructure:"snapshot_every_n"`
	EmbeddingDim   int    `mapstructure:"embedding_dim"`
}

// Load reads configuration from a .env file, environment variables, and an
// optional config file, in this precedence order (lowest to highest):
// defaults < config file < environment. The .env file only fills in
// variables that are not already set in the process environment, so an
// existing environment variable wins over the same key in .env.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("warning: error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("newsradar")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(cfg); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.data_dir", ".newsradar")

	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.idle_connections", 5)

	v.SetDefault("queue.stream_name", "ARTICLES")
	v.SetDefault("queue.consumer_name", "ingestion-worker")
	v.SetDefault("queue.subject_prefix", "articles.new")
	v.SetDefault("queue.prefetch", 10)
	v.SetDefault("queue.max_redeliver", 5)

	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.embedding_model", "gemini-embedding-001")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_tokens", int32(2048))
	v.SetDefault("llm.temperature", float32(0.3))

	v.SetDefault("scoring.similarity_threshold", 0.85)
	v.SetDefault("scoring.hot_threshold", 0.7)
	v.SetDefault("scoring.heuristic_weight", 0.7)
	v.SetDefault("scoring.learned_weight", 0.3)
	v.SetDefault("scoring.top_k", 10)

	v.SetDefault("scheduler.interval_minutes", 5)
	v.SetDefault("scheduler.run_timeout_seconds", 120)
	v.SetDefault("scheduler.disable_after_fails", 5)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("ann.snapshot_dir", ".newsradar/ann")
	v.SetDefault("ann.snapshot_every_n", 100)
	v.SetDefault("ann.embedding_dim", 768)
}

// bindEnvironmentVariables binds each config key to one or more aliases so
// deployments can use either the dotted viper key or a conventional
// upper-snake-case environment variable.
func bindEnvironmentVariables(v *viper.Viper) {
	bindings := map[string][]string{
		"database.connection_string":   {"DATABASE_URL", "NEWSRADAR_DATABASE_URL"},
		"queue.url":                    {"QUEUE_URL", "NATS_URL"},
		"llm.api_key":                  {"LLM_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"llm.model":                    {"LLM_MODEL"},
		"llm.embedding_model":          {"LLM_EMBEDDING_MODEL"},
		"scoring.similarity_threshold": {"SIMILARITY_THRESHOLD"},
		"scoring.hot_threshold":        {"HOT_THRESHOLD"},
		"scoring.top_k":                {"TOP_K"},
		"scheduler.interval_minutes":   {"SCHEDULER_INTERVAL_MINUTES"},
	}
	for key, envKeys := range bindings {
		bindEnvKeys(v, key, envKeys)
	}
}

func bindEnvKeys(v *viper.Viper, viperKey string, envKeys []string) {
	args := append([]string{viperKey}, envKeys...)
	if err := v.BindEnv(args...); err != nil {
		fmt.Printf("warning: failed to bind env for %s: %v\n", viperKey, err)
	}
}

func postProcessConfig(cfg *Config) error {
	if cfg.App.DataDir != "" && strings.HasPrefix(cfg.App.DataDir, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.App.DataDir = home + cfg.App.DataDir[1:]
		}
	}
	if cfg.ANN.SnapshotDir == "" {
		cfg.ANN.SnapshotDir = cfg.App.DataDir + "/ann"
	}
	return nil
}

// validateConfig aggregates every missing-required-field error into one
// returned error rather than failing on the first.
func validateConfig(cfg *Config) error {
	var problems []string
	if cfg.Database.ConnectionString == "" {
		problems = append(problems, "database.connection_string (or DATABASE_URL) is required")
	}
	if cfg.Scoring.HeuristicWeight+cfg.Scoring.LearnedWeight == 0 {
		problems = append(problems, "scoring.heuristic_weight + scoring.learned_weight must be non-zero")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
