package llm

import "testing"

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("a", "b"); got != "a" {
		t.Errorf("firstNonEmpty(a,b) = %q, want a", got)
	}
	if got := firstNonEmpty("", "b"); got != "b" {
		t.Errorf("firstNonEmpty(\"\",b) = %q, want b", got)
	}
}

func TestTruncateForEmbedding(t *testing.T) {
	short := "hello world"
	if got := truncateForEmbedding(short); got != short {
		t.Errorf("truncateForEmbedding(short) = %q, want unchanged", got)
	}

	long := make([]byte, 9000)
	for i := range long {
		long[i] = 'x'
	}
	got := truncateForEmbedding(string(long))
	if len(got) != 8000 {
		t.Errorf("truncateForEmbedding(long) len = %d, want 8000", len(got))
	}
}

func TestCapEntities(t *testing.T) {
	entities := []string{"a", "b", "c"}
	if got := capEntities(entities, 2); len(got) != 2 {
		t.Errorf("capEntities() len = %d, want 2", len(got))
	}
	if got := capEntities(entities, 10); len(got) != 3 {
		t.Errorf("capEntities() len = %d, want 3 (unchanged)", len(got))
	}
}
