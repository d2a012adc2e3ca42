package core

import "testing"

func TestArticleText(t *testing.T) {
	a := Article{Title: "Fed raises rates", Content: "The Federal Reserve today..."}
	want := "Fed raises rates The Federal Reserve today..."
	if got := a.Text(); got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestSourceTrustLevel(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.95, "high"},
		{0.8, "high"},
		{0.6, "medium"},
		{0.5, "medium"},
		{0.3, "low"},
		{0, "unknown"},
	}
	for _, c := range cases {
		s := Source{ReputationScore: c.score}
		if got := s.TrustLevel(); got != c.want {
			t.Errorf("TrustLevel(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("short string unexpectedly truncated: %q", got)
	}
	long := make([]rune, 150)
	for i := range long {
		long[i] = 'a'
	}
	got := Truncate(string(long), MaxTitleTruncate)
	if len([]rune(got)) != MaxTitleTruncate {
		t.Fatalf("Truncate length = %d, want %d", len([]rune(got)), MaxTitleTruncate)
	}
}
