package relevance

import (
	"regexp"
	"strings"
)

// capitalizedRun matches a run of two or more capitalized words, the
// heuristic proxy for a named entity (company, person, place) in the
// absence of a trained NER model.
var capitalizedRun = regexp.MustCompile(`\b([A-Z][\w&.-]*(?:\s+[A-Z][\w&.-]*){1,4})\b`)

// excludedEntityTerms filters out generic institutional nouns that the
// capitalized-run heuristic otherwise flags as entities (government bodies,
// wire services, generic org words), mirroring the exclusion list a trained
// analyzer would apply explicitly.
var excludedEntityTerms = map[string]bool{
	"The": true, "United States": true, "European Union": true,
	"Federal Reserve": true, "White House": true, "Reuters": true,
	"Bloomberg": true, "Associated Press": true,
}

// ExtractEntities returns a deduplicated, order-preserving list of
// capitalized multi-word spans found in text: a lightweight stand-in for a
// trained named-entity-recognition model.
func ExtractEntities(text string) []string {
	matches := capitalizedRun.FindAllString(text, -1)

	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		m = strings.TrimSpace(m)
		// A sentence-initial "The" is captured as part of the run; drop it
		// so the stoplist lookup sees the name itself.
		if rest := strings.TrimPrefix(m, "The "); rest != m {
			if !strings.Contains(rest, " ") {
				continue
			}
			m = rest
		}
		if m == "" || excludedEntityTerms[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
