// Package relevance implements the two-stage relevance gate: a fast keyword
// prefilter followed by a learned single-label classifier, with a fail-open
// error policy so articles are never silently lost.
package relevance

import (
	"context"
	"strings"
)

// Verdict is the keyword prefilter's coarse output.
type Verdict int

const (
	Candidate Verdict = iota
	DefinitelyIrrelevant
)

// Prefilter is stage 1: lowercased substring match against a fixed
// multilingual vocabulary.
type Prefilter interface {
	Check(article Scorable) Verdict
}

// Label is stage 2's output: a single category with a confidence in [0,1].
type Label struct {
	Category   string
	Confidence float64
}

// LearnedClassifier is stage 2: a single-label classifier over ~10
// categories. Implementations may call out to a hosted model; callers must
// treat any error as fail-open (accept the article, log the failure).
type LearnedClassifier interface {
	Classify(ctx context.Context, article Scorable) (Label, error)
}

// Scorable is the minimal surface the classifier needs from an article.
type Scorable interface {
	GetTitle() string
	GetContent() string
}

// acceptedCategories are accepted when the learned label's confidence meets
// the threshold.
var acceptedCategories = map[string]bool{
	"economy":    true,
	"stock":      true,
	"finance":    true,
	"business":   true,
	"technology": true,
}

// economyCategory is always accepted regardless of confidence: the learned
// model is least precise on this class, so recall is preferred.
const economyCategory = "economy"

// DefaultConfidenceThreshold is τ, the minimum confidence for acceptance
// (outside the economy exemption).
const DefaultConfidenceThreshold = 0.5

// Accept applies the stage-2 admission policy to a learned label.
func Accept(label Label, threshold float64) bool {
	category := strings.ToLower(label.Category)
	if category == economyCategory {
		return true
	}
	return acceptedCategories[category] && label.Confidence >= threshold
}
