// Package logger provides the process-wide structured logger: JSON lines on
// stdout, one logger per pipeline component so the concurrently running
// regimes (scheduler, worker, ranking, API) can be told apart in aggregated
// output.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Init builds the default JSON logger once. The minimum level comes from the
// LOG_LEVEL environment variable (debug, info, warn, error); unset or
// unrecognised values mean info.
func Init() {
	once.Do(func() {
		defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: levelFromEnv(),
		}))
		slog.SetDefault(defaultLogger)
	})
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the default logger, initialising it on first use.
func Get() *slog.Logger {
	Init()
	return defaultLogger
}

// Component returns the default logger tagged with a component attribute.
// Callers attach further structured key-value pairs per call site
// ("cluster_id", id, "similarity", sim), never formatted strings.
func Component(name string) *slog.Logger {
	return Get().With("component", name)
}
