package scoring

import (
	"math"
	"testing"
	"time"

	"newsradar/internal/core"
)

const tolerance = 0.02

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestHotnessEmptyClusterIsZero(t *testing.T) {
	got := Hotness(nil, nil)
	want := core.HotnessComponents{}
	if got != want {
		t.Errorf("expected zero components for empty cluster, got %+v", got)
	}
}

func TestMaterialityScalesWithKeywordDensity(t *testing.T) {
	articles := []core.Article{
		{Title: "Bank announces merger", Content: "The acquisition follows a bankruptcy filing."},
	}
	c := Hotness(articles, []float64{0.5})
	if !approxEqual(c.Materiality, 1.0) {
		t.Errorf("expected materiality near 1.0 for 3 keyword hits, got %.2f", c.Materiality)
	}
}

func TestMaterialityZeroWithoutKeywords(t *testing.T) {
	articles := []core.Article{{Title: "Local weather update", Content: "Sunny skies expected this weekend."}}
	c := Hotness(articles, []float64{0.5})
	if c.Materiality != 0 {
		t.Errorf("expected materiality 0, got %.2f", c.Materiality)
	}
}

func TestVelocityBaselineForSingleArticle(t *testing.T) {
	articles := []core.Article{{PublishedAt: time.Now()}}
	c := Hotness(articles, nil)
	if !approxEqual(c.Velocity, singleArticleVelocityBaseline) {
		t.Errorf("expected velocity baseline %.2f, got %.2f", singleArticleVelocityBaseline, c.Velocity)
	}
}

func TestVelocitySaturatesAtTwoPerHour(t *testing.T) {
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	articles := []core.Article{
		{PublishedAt: base},
		{PublishedAt: base.Add(10 * time.Minute)},
		{PublishedAt: base.Add(20 * time.Minute)},
		{PublishedAt: base.Add(30 * time.Minute)},
	}
	c := Hotness(articles, nil)
	if !approxEqual(c.Velocity, 1.0) {
		t.Errorf("expected saturated velocity 1.0, got %.2f", c.Velocity)
	}
}

func TestBreadthSaturatesAtFiveSources(t *testing.T) {
	var articles []core.Article
	for i := int64(1); i <= 7; i++ {
		articles = append(articles, core.Article{SourceID: i})
	}
	c := Hotness(articles, nil)
	if !approxEqual(c.Breadth, 1.0) {
		t.Errorf("expected saturated breadth 1.0, got %.2f", c.Breadth)
	}
}

func TestBreadthCountsDistinctSourcesOnly(t *testing.T) {
	articles := []core.Article{{SourceID: 1}, {SourceID: 1}, {SourceID: 2}}
	c := Hotness(articles, nil)
	want := 2.0 / breadthSaturationSources
	if !approxEqual(c.Breadth, want) {
		t.Errorf("expected breadth %.2f, got %.2f", want, c.Breadth)
	}
}

func TestCredibilityDefaultsWhenMissing(t *testing.T) {
	c := Hotness([]core.Article{{}}, nil)
	if !approxEqual(c.Credibility, defaultCredibility) {
		t.Errorf("expected default credibility %.2f, got %.2f", defaultCredibility, c.Credibility)
	}
}

func TestCredibilityIsMeanReputation(t *testing.T) {
	c := Hotness([]core.Article{{}}, []float64{0.2, 0.8})
	if !approxEqual(c.Credibility, 0.5) {
		t.Errorf("expected mean credibility 0.5, got %.2f", c.Credibility)
	}
}

func TestUnexpectednessSaturatesAtTwoThousandChars(t *testing.T) {
	longContent := make([]byte, 3000)
	for i := range longContent {
		longContent[i] = 'x'
	}
	c := Hotness([]core.Article{{Content: string(longContent)}}, nil)
	if !approxEqual(c.Unexpectedness, 1.0) {
		t.Errorf("expected saturated unexpectedness 1.0, got %.2f", c.Unexpectedness)
	}
}

func TestBlendMatchesReferenceVector(t *testing.T) {
	// A fixed components vector with a hand-computed blended total.
	components := core.HotnessComponents{
		Materiality:    1.0,
		Velocity:       1.0,
		Breadth:        0.4,
		Credibility:    0.5,
		Unexpectedness: 1.0,
	}
	want := 0.25*1.0 + 0.25*1.0 + 0.20*0.4 + 0.20*0.5 + 0.10*1.0
	got := Blend(components)
	if !approxEqual(got, want) {
		t.Errorf("expected blended score %.3f, got %.3f", want, got)
	}
}

func TestBlendClipsToUnitInterval(t *testing.T) {
	over := core.HotnessComponents{Materiality: 2, Velocity: 2, Breadth: 2, Credibility: 2, Unexpectedness: 2}
	if got := Blend(over); got != 1.0 {
		t.Errorf("expected clipped blend 1.0, got %.2f", got)
	}
}

func TestFinalScoreUsesDefaultWeightsWhenUnset(t *testing.T) {
	got := FinalScore(1.0, 0.0, 0, 0)
	if !approxEqual(got, DefaultHeuristicWeight) {
		t.Errorf("expected final score %.2f using default weights, got %.2f", DefaultHeuristicWeight, got)
	}
}

func TestIsHotUsesDefaultThresholdWhenUnset(t *testing.T) {
	if !IsHot(0.75, 0) {
		t.Error("expected 0.75 to clear the default hot threshold")
	}
	if IsHot(0.5, 0) {
		t.Error("expected 0.5 to fall below the default hot threshold")
	}
}
