package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/refnet/pkg/fetcher"
)

func TestFormatTimeRel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
		{14 * 24 * time.Hour, "2w ago"},
		{90 * 24 * time.Hour, "3mo ago"},
		{800 * 24 * time.Hour, "2y ago"},
		{-time.Hour, "now"},
	}
	for _, tt := range tests {
		if got := formatTimeRelAt(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("%v ago = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if got := formatTimeRelAt(time.Time{}, now); got != "unknown" {
		t.Errorf("zero time = %q", got)
	}
}

func TestTruncateRunesHelper(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer name", 6, "a lon…"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}

	// Wide characters count as two cells.
	got := truncate("日本語の名前です", 7)
	if w := runewidth.StringWidth(got); w > 7 {
		t.Errorf("wide truncation is %d cells: %q", w, got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis, got %q", got)
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 5); got != "ab   " {
		t.Errorf("padRight = %q", got)
	}
	if got := padRight("日本", 5); runewidth.StringWidth(got) != 5 {
		t.Errorf("wide padRight = %q", got)
	}
	if got := padRight("toolong", 3); got != "toolong" {
		t.Errorf("padRight should not cut: %q", got)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{950, "950"},
		{12.5, "12.50"},
		{12_500, "12.5k"},
		{3_200_000, "3.2M"},
		{-15_000, "-15.0k"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestErrorCopy(t *testing.T) {
	if errorCopy(nil) != "" {
		t.Error("nil error should have no copy")
	}
	unauth := &fetcher.LoadError{Kind: fetcher.KindUnauthorized, Cause: errors.New("403")}
	if got := errorCopy(unauth); strings.Contains(got, "retry") {
		t.Errorf("unauthorized should not offer retry: %q", got)
	}
	transient := &fetcher.LoadError{Kind: fetcher.KindTransient, Cause: errors.New("eof")}
	if got := errorCopy(transient); !strings.Contains(got, "press r to retry") {
		t.Errorf("transient copy = %q", got)
	}
}
