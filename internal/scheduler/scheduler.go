// Package scheduler implements the Source Scheduler: it periodically
// invokes each registered scraper, deduplicates URLs against the Article
// Store, and publishes new articles to the work queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"newsradar/internal/core"
	"newsradar/internal/fetch"
	"newsradar/internal/logger"
	"newsradar/internal/persistence"
	"newsradar/internal/queue"
)

// State is a scraper's position in its per-scraper state machine
// (idle → fetching → publishing → idle, with disabled as a terminal state).
type State int

const (
	Idle State = iota
	Fetching
	Publishing
	Disabled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Publishing:
		return "publishing"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// entry tracks one registered scraper's machine state across ticks.
type entry struct {
	mu                  sync.Mutex
	scraper             fetch.Scraper
	state               State
	consecutiveFailures int
}

// Scheduler runs the registered scrapers on a fixed interval, publishing
// newly-seen articles to the work queue.
type Scheduler struct {
	entries           []*entry
	sources           persistence.SourceRepository
	articles          persistence.ArticleRepository
	publisher         queue.Publisher
	log               *slog.Logger
	interval          time.Duration
	runTimeout        time.Duration
	disableAfterFails int

	seenMu sync.Mutex
	seen   map[string]bool
}

// Config configures the scheduler's timing and failure-tolerance policy.
type Config struct {
	Interval          time.Duration
	RunTimeout        time.Duration
	DisableAfterFails int
}

// New builds a Scheduler over the given scrapers.
func New(scrapers []fetch.Scraper, sources persistence.SourceRepository, articles persistence.ArticleRepository, publisher queue.Publisher, cfg Config) *Scheduler {
	entries := make([]*entry, len(scrapers))
	for i, s := range scrapers {
		entries[i] = &entry{scraper: s, state: Idle}
	}
	if cfg.DisableAfterFails <= 0 {
		cfg.DisableAfterFails = 5
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	return &Scheduler{
		entries:           entries,
		sources:           sources,
		articles:          articles,
		publisher:         publisher,
		log:               logger.Component("scheduler"),
		interval:          cfg.Interval,
		runTimeout:        cfg.RunTimeout,
		disableAfterFails: cfg.DisableAfterFails,
		seen:              make(map[string]bool),
	}
}

// Run blocks, firing a tick every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduler cycle: every non-disabled scraper fetches and
// publishes concurrently, bounded by a per-run deadline. A single scraper's
// failure never aborts its siblings.
func (s *Scheduler) Tick(ctx context.Context) {
	if len(s.entries) == 0 {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	p := pool.New().WithMaxGoroutines(len(s.entries))
	for _, e := range s.entries {
		e := e
		p.Go(func() {
			s.runOne(runCtx, e)
		})
	}
	p.Wait()
}

func (s *Scheduler) runOne(ctx context.Context, e *entry) {
	e.mu.Lock()
	if e.state == Disabled {
		e.mu.Unlock()
		return
	}
	e.state = Fetching
	e.mu.Unlock()

	articles, err := e.scraper.Fetch(ctx)
	if err != nil {
		s.recordFailure(e, err)
		return
	}

	e.mu.Lock()
	e.state = Publishing
	e.mu.Unlock()

	published := 0
	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		isNew, err := s.markSeen(ctx, a.URL)
		if err != nil {
			s.log.Warn("scheduler: dedup check failed", "scraper", e.scraper.Name(), "url", a.URL, "error", err)
			continue
		}
		if !isNew {
			continue
		}
		msg := fetch.ToQueueMessage(e.scraper.Name(), a)
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.log.Error("scheduler: publish failed", "scraper", e.scraper.Name(), "url", a.URL, "error", err)
			continue
		}
		published++
	}

	e.mu.Lock()
	e.state = Idle
	e.consecutiveFailures = 0
	e.mu.Unlock()

	s.log.Info("scheduler: tick complete", "scraper", e.scraper.Name(), "fetched", len(articles), "published", published)
}

func (s *Scheduler) recordFailure(e *entry, err error) {
	e.mu.Lock()
	e.consecutiveFailures++
	fails := e.consecutiveFailures
	if fails >= s.disableAfterFails {
		e.state = Disabled
	} else {
		e.state = Idle
	}
	e.mu.Unlock()

	s.log.Error("scheduler: scraper fetch failed", "scraper", e.scraper.Name(), "consecutive_failures", fails, "error", err)
}

// markSeen reports whether url has not been seen before: it checks the
// process-local cache first, falling back to the Article Store so that
// restarts and multi-instance deployments still dedupe correctly.
func (s *Scheduler) markSeen(ctx context.Context, url string) (bool, error) {
	s.seenMu.Lock()
	if s.seen[url] {
		s.seenMu.Unlock()
		return false, nil
	}
	s.seenMu.Unlock()

	_, err := s.articles.GetByURL(ctx, url)
	if err == nil {
		s.seenMu.Lock()
		s.seen[url] = true
		s.seenMu.Unlock()
		return false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return false, fmt.Errorf("lookup url: %w", err)
	}

	s.seenMu.Lock()
	s.seen[url] = true
	s.seenMu.Unlock()
	return true, nil
}

// States returns a snapshot of every scraper's current state, for health
// reporting.
func (s *Scheduler) States() map[string]State {
	out := make(map[string]State, len(s.entries))
	for _, e := range s.entries {
		e.mu.Lock()
		out[e.scraper.Name()] = e.state
		e.mu.Unlock()
	}
	return out
}
