// Package scoring implements the hotness scorer: five pure heuristic
// sub-scores blended with a fixed weight vector, plus the learned-blend
// combination applied at ranking time. Every function here is deterministic
// given its inputs: no clock, no randomness.
package scoring

import (
	"strings"

	"newsradar/internal/core"
)

// Weights are the fixed blend weights for the five heuristic sub-scores.
// They sum to 1.
const (
	MaterialityWeight    = 0.25
	VelocityWeight       = 0.25
	BreadthWeight        = 0.20
	CredibilityWeight    = 0.20
	UnexpectednessWeight = 0.10
)

// DefaultHeuristicWeight and DefaultLearnedWeight blend the heuristic total
// with the learned per-article mean at ranking time.
const (
	DefaultHeuristicWeight = 0.7
	DefaultLearnedWeight   = 0.3
)

// DefaultHotThreshold is H: a cluster is hot iff its final score ≥ H.
const DefaultHotThreshold = 0.7

// highImpactKeywords mirrors the materiality sub-score's fixed vocabulary,
// English plus a handful of transliterated Russian equivalents.
var highImpactKeywords = []string{
	"merger", "acquisition", "bankruptcy", "guidance", "regulation",
	"lawsuit", "fraud", "investigation", "earnings", "restructuring",
	"default", "dividend", "buyback", "ipo", "delisting",
	"слияние", "поглощение", "банкротство", "регулирование",
	"иск", "мошенничество", "расследование", "прибыль",
}

// LearnedScorer is the offline-trained regressor contract: a scalar in
// [0,1] per article. An implementation emitting another range (say 0-100)
// must normalise before returning. Implementations may be absent, in which
// case the learned blend component is treated as 0.
type LearnedScorer interface {
	Score(article core.Article) (float64, error)
}

// Hotness computes the five heuristic sub-scores for a cluster's articles
// and their sources' reputations. It does not blend them; Blend turns the
// result into a single value in [0,1].
func Hotness(articles []core.Article, reputations []float64) core.HotnessComponents {
	if len(articles) == 0 {
		return core.HotnessComponents{}
	}
	return core.HotnessComponents{
		Materiality:    materiality(articles),
		Velocity:       velocity(articles),
		Breadth:        breadth(articles),
		Credibility:    credibility(reputations),
		Unexpectedness: unexpectedness(articles),
	}
}

// Blend combines the five sub-scores into the heuristic total, clipped to
// [0,1].
func Blend(c core.HotnessComponents) float64 {
	total := MaterialityWeight*c.Materiality +
		VelocityWeight*c.Velocity +
		BreadthWeight*c.Breadth +
		CredibilityWeight*c.Credibility +
		UnexpectednessWeight*c.Unexpectedness
	return clip01(total)
}

// FinalScore blends the heuristic total with the mean learned score using
// the configured weights (default 0.7/0.3). An absent learned score is 0.
func FinalScore(heuristic, learned, heuristicWeight, learnedWeight float64) float64 {
	if heuristicWeight == 0 && learnedWeight == 0 {
		heuristicWeight, learnedWeight = DefaultHeuristicWeight, DefaultLearnedWeight
	}
	return clip01(heuristicWeight*heuristic + learnedWeight*learned)
}

// IsHot reports whether a final score clears the hot threshold.
func IsHot(final, threshold float64) bool {
	if threshold == 0 {
		threshold = DefaultHotThreshold
	}
	return final >= threshold
}

func materiality(articles []core.Article) float64 {
	var sum float64
	for _, a := range articles {
		content := strings.ToLower(a.Title + " " + a.Content)
		count := 0
		for _, kw := range highImpactKeywords {
			if strings.Contains(content, kw) {
				count++
			}
		}
		sum += min1(float64(count) / 3.0)
	}
	return min1(sum / float64(len(articles)))
}

// velocitySaturationPerHour is the articles-per-hour rate at which velocity
// saturates to 1.0.
const velocitySaturationPerHour = 2.0

// singleArticleVelocityBaseline is returned for clusters of exactly one
// article, where a rate cannot be computed.
const singleArticleVelocityBaseline = 0.3

// minTimeSpanHours floors the publication span to avoid dividing by a
// near-zero duration when articles land within the same few minutes.
const minTimeSpanHours = 0.1

func velocity(articles []core.Article) float64 {
	if len(articles) <= 1 {
		return singleArticleVelocityBaseline
	}

	earliest, latest := articles[0].PublishedAt, articles[0].PublishedAt
	for _, a := range articles[1:] {
		if a.PublishedAt.Before(earliest) {
			earliest = a.PublishedAt
		}
		if a.PublishedAt.After(latest) {
			latest = a.PublishedAt
		}
	}

	spanHours := latest.Sub(earliest).Hours()
	if spanHours < minTimeSpanHours {
		spanHours = minTimeSpanHours
	}

	rate := float64(len(articles)) / spanHours
	return min1(rate / velocitySaturationPerHour)
}

// breadthSaturationSources is the distinct-source count at which breadth
// saturates to 1.0.
const breadthSaturationSources = 5.0

func breadth(articles []core.Article) float64 {
	sources := make(map[int64]bool)
	for _, a := range articles {
		sources[a.SourceID] = true
	}
	return min1(float64(len(sources)) / breadthSaturationSources)
}

// defaultCredibility is used when no source reputation scores are available.
const defaultCredibility = 0.5

func credibility(reputations []float64) float64 {
	if len(reputations) == 0 {
		return defaultCredibility
	}
	var sum float64
	for _, r := range reputations {
		sum += r
	}
	return sum / float64(len(reputations))
}

// unexpectednessSaturationChars is the mean body length at which
// unexpectedness saturates to 1.0 — a placeholder for a true novelty signal
// (a centroid-distance measure could replace this without changing the
// package's public surface).
const unexpectednessSaturationChars = 2000.0

func unexpectedness(articles []core.Article) float64 {
	var sum float64
	for _, a := range articles {
		sum += float64(len(a.Content))
	}
	avg := sum / float64(len(articles))
	return min1(avg / unexpectednessSaturationChars)
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

func clip01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
