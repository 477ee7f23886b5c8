package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example News</title>
    <item><title>Story One</title><link>https://example.com/1</link><description>&lt;p&gt;First story&lt;/p&gt;</description></item>
    <item><title>Story Two</title><link>https://example.com/2</link><description>Second story</description></item>
    <item><title>Story Three</title><link>https://example.com/3</link><description>Third story</description></item>
    <item><title>Story Four</title><link>https://example.com/4</link><description>Fourth story</description></item>
    <item><title>Story Five</title><link>https://example.com/5</link><description>Fifth story</description></item>
  </channel>
</rss>`

func testFetcher(health *Health, retries int) *Fetcher {
	return NewFetcher(health, Options{
		Timeout:     2 * time.Second,
		Retries:     retries,
		BackoffBase: time.Millisecond,
	})
}

func TestFetchLimitsToThreeStories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer srv.Close()

	f := testFetcher(NewHealth(), 3)
	stories, err := f.Fetch(context.Background(), NewSource("General News", srv.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(stories) != 3 {
		t.Fatalf("expected 3 stories, got %d", len(stories))
	}
	if stories[0].Title != "Story One" {
		t.Errorf("expected first story first, got %q", stories[0].Title)
	}
	if stories[0].Description != "First story" {
		t.Errorf("expected HTML stripped from description, got %q", stories[0].Description)
	}
	if stories[0].Category != "General News" {
		t.Errorf("expected category carried onto story, got %q", stories[0].Category)
	}
	if stories[0].Source != "Example News" {
		t.Errorf("expected feed title as source, got %q", stories[0].Source)
	}
}

func TestFetchRetriesThenDisables(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	health := NewHealth()
	f := testFetcher(health, 3)
	source := NewSource("General News", srv.URL)

	_, err := f.Fetch(context.Background(), source)
	if !errors.Is(err, ErrSourceDisabled) {
		t.Fatalf("expected ErrSourceDisabled, got %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if !health.Disabled(source.ID) {
		t.Error("expected source to be disabled")
	}

	// A disabled source must not touch the network again.
	_, err = f.Fetch(context.Background(), source)
	if !errors.Is(err, ErrSourceDisabled) {
		t.Fatalf("expected ErrSourceDisabled on second call, got %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected no further network calls, got %d total", got)
	}
}

func TestFetchEmptyFeedIsRetryable(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`)
	}))
	defer srv.Close()

	f := testFetcher(NewHealth(), 2)
	_, err := f.Fetch(context.Background(), NewSource("General News", srv.URL))
	if !errors.Is(err, ErrSourceDisabled) {
		t.Fatalf("expected disablement after empty responses, got %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("expected a 200-with-no-entries response to be retried, got %d attempts", got)
	}
}

func TestFetchRecoversWithinRetryBudget(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer srv.Close()

	health := NewHealth()
	f := testFetcher(health, 3)
	source := NewSource("General News", srv.URL)

	stories, err := f.Fetch(context.Background(), source)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(stories) != 3 {
		t.Errorf("expected stories after recovery, got %d", len(stories))
	}
	if health.Disabled(source.ID) {
		t.Error("source should not be disabled after recovery")
	}
	if health.For(source.ID).Failures() != 1 {
		t.Errorf("expected 1 recorded failure, got %d", health.For(source.ID).Failures())
	}
}

func TestFetchHTMLFallsBackToLinkScraping(t *testing.T) {
	page := `<html><body>
		<a href="/story-about-markets">A long headline about market movement today</a>
		<a href="https://other.example.com/science">Another long headline about a science result</a>
		<a href="/nav">Nav</a>
		<a href="mailto:x@example.com">A mail link with quite a lot of text in it</a>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	f := testFetcher(NewHealth(), 3)
	stories, err := f.Fetch(context.Background(), NewSource("General News", srv.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("expected 2 scraped stories, got %d: %+v", len(stories), stories)
	}
	if stories[0].Link != srv.URL+"/story-about-markets" {
		t.Errorf("expected relative link resolved against base, got %q", stories[0].Link)
	}
}

func TestSourceID(t *testing.T) {
	a := NewSource("x", "https://example.com/a")
	b := NewSource("x", "https://example.com/b")
	again := NewSource("y", "https://example.com/a")

	if a.ID == b.ID {
		t.Error("different URLs should produce different IDs")
	}
	if a.ID != again.ID {
		t.Error("same URL should produce the same ID")
	}
	if len(a.ID) != 32 {
		t.Errorf("expected 32-char hex string, got %d chars: %s", len(a.ID), a.ID)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long string", 10, "this is..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<p>Hello</p>", "Hello"},
		{"<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"No tags here", "No tags here"},
		{"<div>  Multiple   spaces  </div>", "Multiple spaces"},
		{"", ""},
	}
	for _, tt := range tests {
		got := stripHTML(tt.input)
		if got != tt.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
