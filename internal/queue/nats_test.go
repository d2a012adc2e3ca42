package queue

import (
	"context"
	"testing"
	"time"
)

func TestDeadLetterSubject(t *testing.T) {
	if got := deadLetterSubject("articles.new"); got != "articles.new.dead-letter" {
		t.Errorf("deadLetterSubject() = %q", got)
	}
}

func TestFetchWaitUsesContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if got := fetchWait(ctx); got <= 0 || got > 2*time.Second {
		t.Errorf("fetchWait() = %v, want (0, 2s]", got)
	}
}

func TestFetchWaitDefaultsWithoutDeadline(t *testing.T) {
	if got := fetchWait(context.Background()); got != 5*time.Second {
		t.Errorf("fetchWait() = %v, want 5s default", got)
	}
}
