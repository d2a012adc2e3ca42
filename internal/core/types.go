// Package core holds the domain types shared across the ingestion-to-ranking
// pipeline: articles, sources, queue messages, and the enrichment artefact.
package core

import (
	"errors"
	"time"
)

// Sentinel error kinds, matched with errors.Is at call sites: DuplicateURL,
// NotFound, Validation, ModelFailure, Corruption. Transient I/O and fatal
// errors have no sentinel here; they are returned as wrapped errors.
var (
	ErrDuplicateURL = errors.New("article: duplicate url")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrModelFailure = errors.New("model failure")
	ErrCorruption   = errors.New("corruption")
)

// Article is the unit persisted by the Article Store. ClusterID is assigned
// once at ingestion and never changes afterward.
type Article struct {
	ID           string    `json:"id"`
	SourceID     int64     `json:"source_id"`
	SourceName   string    `json:"source_name"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	PublishedAt  time.Time `json:"published_at"`
	IngestedAt   time.Time `json:"ingested_at"`
	ClusterID    string    `json:"cluster_id"`
	Entities     []string  `json:"entities,omitempty"`
	LearnedScore float64   `json:"learned_score,omitempty"`
	HasLearned   bool      `json:"-"`
}

// Text is the canonical text fed to the embedding model: "headline + space + body".
func (a Article) Text() string {
	return a.Title + " " + a.Content
}

// Source is a registered scrape target with a mutable reputation score.
type Source struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	BaseURL         string    `json:"base_url"`
	ReputationScore float64   `json:"reputation_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// DefaultReputationScore is used for sources with no administrative override.
const DefaultReputationScore = 0.5

// TrustLevel buckets the numeric reputation score into a coarse label for
// display and logging. Derived, not stored.
func (s Source) TrustLevel() string {
	switch {
	case s.ReputationScore >= 0.8:
		return "high"
	case s.ReputationScore >= 0.5:
		return "medium"
	case s.ReputationScore > 0:
		return "low"
	default:
		return "unknown"
	}
}

// QueueMessage is the wire format published by the Source Scheduler and
// consumed by the Ingestion Worker: one article per message.
type QueueMessage struct {
	SourceName  string `json:"source_name"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	PublishedAt string `json:"published_at"`
}

// TimelineEvent is one entry in a Story's reconstructed timeline.
type TimelineEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// HotnessComponents are the five sub-scores that blend into the heuristic score.
type HotnessComponents struct {
	Materiality    float64 `json:"materiality"`
	Velocity       float64 `json:"velocity"`
	Breadth        float64 `json:"breadth"`
	Credibility    float64 `json:"credibility"`
	Unexpectedness float64 `json:"unexpectedness"`
}

// Hotness is the full scoring result for a cluster: the heuristic components,
// the heuristic total, the learned score, and the final blend.
type Hotness struct {
	Components HotnessComponents `json:"components"`
	Heuristic  float64           `json:"heuristic"`
	Learned    float64           `json:"learned"`
	Final      float64           `json:"final"`
}

// Story is the non-persistent enrichment artefact produced by the Ranking &
// Enrichment Job. Every claim in Draft must be traceable to an article
// actually present in the cluster.
type Story struct {
	ClusterID    string          `json:"cluster_id"`
	Hotness      Hotness         `json:"hotness"`
	Headline     string          `json:"headline"`
	WhyNow       string          `json:"why_now"`
	Entities     []string        `json:"entities"`
	Sources      []string        `json:"sources"`
	Timeline     []TimelineEvent `json:"timeline"`
	Draft        string          `json:"draft"`
	Telegram     string          `json:"telegram"`
	ArticleCount int             `json:"article_count"`
	Fallback     bool            `json:"fallback"`
}

// FallbackWhyNow is the deterministic rationale used when the LLM is
// unreachable or its response fails to parse.
const FallbackWhyNow = "Unable to generate rationale at this time; showing the most recent headline for this cluster."

// MaxTitleTruncate is the length at which a fallback headline is truncated.
const MaxTitleTruncate = 100

// Truncate returns s cut to at most n runes, matching the fallback-headline rule.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
