package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ProhibitedTV/StreamPulse/internal/feed"
	"github.com/ProhibitedTV/StreamPulse/internal/stats"
	"github.com/ProhibitedTV/StreamPulse/internal/stocks"
)

const testRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test Feed</title>
<item><title>First</title><link>https://e.com/1</link><description>one</description></item>
<item><title>Second</title><link>https://e.com/2</link><description>two</description></item>
</channel></rss>`

func rssServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quoteServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Global Quote": {"05. price": "100.50"}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func statsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"tot_pub_debt_out_amt":"1000000.00"}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOrchestrator(t *testing.T, categories []CategoryFeeds, symbols []string) *Orchestrator {
	t.Helper()
	health := feed.NewHealth()
	fetcher := feed.NewFetcher(health, feed.Options{
		Timeout:     2 * time.Second,
		Retries:     2,
		BackoffBase: time.Millisecond,
	})

	market := stocks.NewClient("key", 2*time.Second, nil)
	market.PrimaryURL = quoteServer(t).URL
	market.SecondaryURL = quoteServer(t).URL

	st := stats.NewClient(2*time.Second, nil)
	st.DebtURL = statsServer(t).URL
	st.CO2URL = statsServer(t).URL

	return New(Options{
		Fetcher:    fetcher,
		Market:     market,
		Stats:      st,
		Categories: categories,
		Symbols:    symbols,
		Workers:    3,
	})
}

func collect(t *testing.T, progressCh <-chan Progress, resultCh <-chan *ResultSet) ([]Progress, *ResultSet) {
	t.Helper()
	var updates []Progress
	for p := range progressCh {
		updates = append(updates, p)
	}
	select {
	case result := <-resultCh:
		return updates, result
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
		return nil, nil
	}
}

func TestLoadAllCollectsEverything(t *testing.T) {
	good := rssServer(t)
	o := testOrchestrator(t,
		[]CategoryFeeds{
			{Name: "General News", URLs: []string{good.URL, good.URL + "/b"}},
			{Name: "Financial", URLs: []string{good.URL + "/c"}},
		},
		[]string{"AAPL", "GOOGL"},
	)

	pc, rc := o.LoadAll(context.Background())
	updates, result := collect(t, pc, rc)

	if len(result.Stories["General News"]) != 4 {
		t.Errorf("expected 4 general stories, got %d", len(result.Stories["General News"]))
	}
	if len(result.Stories["Financial"]) != 2 {
		t.Errorf("expected 2 financial stories, got %d", len(result.Stories["Financial"]))
	}
	if len(result.Quotes) != 2 {
		t.Errorf("expected 2 quotes, got %d", len(result.Quotes))
	}
	if result.Quotes["AAPL"].Price != 100.5 {
		t.Errorf("unexpected AAPL quote: %+v", result.Quotes["AAPL"])
	}
	if result.Stats.USDebt != "$1,000,000" {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}
	if len(updates) == 0 {
		t.Fatal("expected progress updates")
	}
	if final := updates[len(updates)-1]; final.Percent != 100 {
		t.Errorf("expected final progress 100, got %d", final.Percent)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	good := rssServer(t)
	bad := failingServer(t)
	o := testOrchestrator(t,
		[]CategoryFeeds{{Name: "General News", URLs: []string{good.URL, bad.URL, good.URL + "/b", bad.URL + "/x"}}},
		[]string{"AAPL", "GOOGL", "MSFT"},
	)

	pc, rc := o.LoadAll(context.Background())
	updates, _ := collect(t, pc, rc)

	last := -1
	for _, p := range updates {
		if p.Percent < last {
			t.Fatalf("progress regressed: %d after %d", p.Percent, last)
		}
		if p.Percent < 0 || p.Percent > 100 {
			t.Fatalf("progress out of range: %d", p.Percent)
		}
		last = p.Percent
	}
	if last != 100 {
		t.Errorf("expected progress to finish at 100, got %d", last)
	}
}

func TestLoadAllFailingCategoryIsExplicitlyEmpty(t *testing.T) {
	bad := failingServer(t)
	good := rssServer(t)
	o := testOrchestrator(t,
		[]CategoryFeeds{
			{Name: "Broken", URLs: []string{bad.URL}},
			{Name: "Working", URLs: []string{good.URL}},
		},
		nil,
	)

	pc, rc := o.LoadAll(context.Background())
	updates, result := collect(t, pc, rc)

	stories, present := result.Stories["Broken"]
	if !present {
		t.Fatal("failed category must still appear in the result set")
	}
	if len(stories) != 0 || !result.Empty("Broken") {
		t.Errorf("expected empty category, got %d stories", len(stories))
	}
	if result.Empty("Working") {
		t.Error("working category should have stories")
	}
	// Failures must not stop the load from reaching 100.
	if final := updates[len(updates)-1]; final.Percent != 100 {
		t.Errorf("expected 100%% completion despite failures, got %d", final.Percent)
	}
}

func TestTickerText(t *testing.T) {
	r := &ResultSet{Quotes: map[string]stocks.Quote{
		"AAPL": {Symbol: "AAPL", Price: 232.57},
	}}
	got := r.TickerText([]string{"AAPL", "GOOGL"})
	want := "AAPL: $232.57  |  GOOGL: N/A"
	if got != want {
		t.Errorf("TickerText = %q, want %q", got, want)
	}
}

func TestRefreshFeedsSkipsDisabledSources(t *testing.T) {
	good := rssServer(t)
	bad := failingServer(t)
	o := testOrchestrator(t,
		[]CategoryFeeds{{Name: "General News", URLs: []string{good.URL, bad.URL}}},
		nil,
	)

	// First load disables the failing source.
	pc, rc := o.LoadAll(context.Background())
	_, result := collect(t, pc, rc)
	if len(result.Stories["General News"]) != 2 {
		t.Fatalf("expected 2 stories from first load, got %d", len(result.Stories["General News"]))
	}

	stories := o.RefreshFeeds(context.Background(), "General News")
	if len(stories) != 2 {
		t.Errorf("expected refresh to return 2 stories, got %d", len(stories))
	}
}
