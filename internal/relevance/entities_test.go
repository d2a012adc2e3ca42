package relevance

import "testing"

func TestExtractEntitiesFindsMultiWordCapitalizedSpans(t *testing.T) {
	text := "Goldman Sachs agreed to acquire Silicon Valley Bank after the board met."
	got := ExtractEntities(text)

	want := map[string]bool{"Goldman Sachs": true, "Silicon Valley Bank": true}
	if len(got) != len(want) {
		t.Fatalf("expected %d entities, got %d: %v", len(want), len(got), got)
	}
	for _, e := range got {
		if !want[e] {
			t.Errorf("unexpected entity %q", e)
		}
	}
}

func TestExtractEntitiesDeduplicates(t *testing.T) {
	text := "Deutsche Bank reported earnings. Deutsche Bank shares rose afterward."
	got := ExtractEntities(text)

	count := 0
	for _, e := range got {
		if e == "Deutsche Bank" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected Deutsche Bank to appear once, got %d", count)
	}
}

func TestExtractEntitiesExcludesStoplistedTerms(t *testing.T) {
	text := "The Federal Reserve and the European Union both commented on the report."
	got := ExtractEntities(text)

	for _, e := range got {
		if excludedEntityTerms[e] {
			t.Errorf("expected %q to be excluded, but it was returned", e)
		}
	}
}

func TestExtractEntitiesIgnoresSingleCapitalizedWord(t *testing.T) {
	text := "Markets rallied on Tuesday after the announcement."
	got := ExtractEntities(text)
	if len(got) != 0 {
		t.Errorf("expected no multi-word entities, got %v", got)
	}
}
