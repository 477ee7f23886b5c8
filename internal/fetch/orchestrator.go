// Package fetch coordinates the startup load: every feed, quote, and
// statistics source runs through one bounded worker pool, per-item
// completions aggregate into a monotonic progress stream, and the caller
// gets a partial result set no matter how many sources failed.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ProhibitedTV/StreamPulse/internal/feed"
	"github.com/ProhibitedTV/StreamPulse/internal/stats"
	"github.com/ProhibitedTV/StreamPulse/internal/stocks"
)

// Progress is one update on the loading screen: percent is monotonically
// non-decreasing in [0,100].
type Progress struct {
	Percent int
	Message string
}

// ResultSet is everything the startup load produced. Categories with zero
// stories are present with an empty slice, so "no stories available" is an
// explicit state rather than a missing key.
type ResultSet struct {
	Stories map[string][]feed.StoryEntry
	Quotes  map[string]stocks.Quote
	Stats   stats.Snapshot
}

// Empty reports whether a category loaded no stories.
func (r *ResultSet) Empty(category string) bool {
	return len(r.Stories[category]) == 0
}

// TickerText formats quotes for the scrolling ticker, in symbol order.
// Symbols with no quote render as N/A.
func (r *ResultSet) TickerText(symbols []string) string {
	out := ""
	for i, sym := range symbols {
		if i > 0 {
			out += "  |  "
		}
		if q, ok := r.Quotes[sym]; ok {
			out += fmt.Sprintf("%s: $%.2f", sym, q.Price)
		} else {
			out += sym + ": N/A"
		}
	}
	return out
}

// CategoryFeeds maps a category name to its feed sources.
type CategoryFeeds struct {
	Name string
	URLs []string
}

// Options wires an Orchestrator. Fetcher, Market, and Stats are required;
// the rest defaults.
type Options struct {
	Fetcher    *feed.Fetcher
	Market     *stocks.Client
	Stats      *stats.Client
	Categories []CategoryFeeds
	Symbols    []string
	Workers    int
	Logger     *slog.Logger
}

// Orchestrator runs source fetchers concurrently and aggregates their
// completions.
type Orchestrator struct {
	fetcher    *feed.Fetcher
	market     *stocks.Client
	stats      *stats.Client
	categories []CategoryFeeds
	symbols    []string
	workers    int
	log        *slog.Logger
}

func New(opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:    opts.Fetcher,
		market:     opts.Market,
		stats:      opts.Stats,
		categories: opts.Categories,
		symbols:    opts.Symbols,
		workers:    opts.Workers,
		log:        opts.Logger,
	}
}

// LoadAll schedules every source on the worker pool and returns immediately.
// The progress channel carries monotonic updates and closes at 100; the
// result channel receives exactly one ResultSet and closes. Fetch failures
// are absorbed into health state and the set is simply smaller.
func (o *Orchestrator) LoadAll(ctx context.Context) (<-chan Progress, <-chan *ResultSet) {
	var sources []feed.Source
	for _, cat := range o.categories {
		for _, url := range cat.URLs {
			sources = append(sources, feed.NewSource(cat.Name, url))
		}
	}

	totalFeeds := len(sources)
	totalMarket := len(o.symbols) + 1 // the stats snapshot rides in the market half

	progressCh := make(chan Progress, totalFeeds+totalMarket+4)
	resultCh := make(chan *ResultSet, 1)

	go func() {
		defer close(progressCh)
		defer close(resultCh)

		tracker := newTracker(totalFeeds, totalMarket, progressCh)

		result := &ResultSet{
			Stories: make(map[string][]feed.StoryEntry),
			Quotes:  make(map[string]stocks.Quote),
		}
		for _, cat := range o.categories {
			result.Stories[cat.Name] = nil
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)

		for _, src := range sources {
			src := src
			g.Go(func() error {
				stories, err := o.fetcher.Fetch(gctx, src)
				mu.Lock()
				if err != nil {
					if !errors.Is(err, feed.ErrSourceDisabled) {
						o.log.Warn("feed fetch failed", "url", src.URL, "err", err)
					}
				} else {
					result.Stories[src.Category] = append(result.Stories[src.Category], stories...)
				}
				mu.Unlock()
				tracker.feedDone()
				return nil
			})
		}

		for _, sym := range o.symbols {
			sym := sym
			g.Go(func() error {
				quote, err := o.market.Price(gctx, sym)
				mu.Lock()
				if err != nil {
					var exhausted *stocks.ProviderExhaustedError
					if errors.As(err, &exhausted) {
						o.log.Warn("no provider could quote symbol", "symbol", sym)
					} else {
						o.log.Warn("quote fetch failed", "symbol", sym, "err", err)
					}
				} else {
					result.Quotes[sym] = quote
				}
				mu.Unlock()
				tracker.marketDone("Fetched stock price for " + sym)
				return nil
			})
		}

		g.Go(func() error {
			snap := o.stats.Fetch(gctx)
			mu.Lock()
			result.Stats = snap
			mu.Unlock()
			tracker.marketDone("Loaded global statistics")
			return nil
		})

		g.Wait()

		// Keep each category's stories in a stable order: config order of
		// feeds is lost to concurrency, so sort by title within source.
		for cat, stories := range result.Stories {
			sort.SliceStable(stories, func(i, j int) bool {
				if stories[i].Source != stories[j].Source {
					return stories[i].Source < stories[j].Source
				}
				return false
			})
			result.Stories[cat] = stories
		}

		tracker.finish()
		resultCh <- result
	}()

	return progressCh, resultCh
}

// RefreshFeeds refetches the feeds of one category through the same worker
// pool limit. Disabled sources are skipped by the fetcher. Used by the
// rotation engine's background refresh.
func (o *Orchestrator) RefreshFeeds(ctx context.Context, category string) []feed.StoryEntry {
	var urls []string
	for _, cat := range o.categories {
		if cat.Name == category {
			urls = cat.URLs
			break
		}
	}

	var (
		mu      sync.Mutex
		stories []feed.StoryEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, url := range urls {
		src := feed.NewSource(category, url)
		g.Go(func() error {
			got, err := o.fetcher.Fetch(gctx, src)
			if err != nil {
				return nil
			}
			mu.Lock()
			stories = append(stories, got...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return stories
}

// tracker aggregates heterogeneous completions into one monotonic percent.
// Feeds map to the first half of the bar, market data to the second, so a
// stall in one half does not freeze the other.
type tracker struct {
	mu          sync.Mutex
	feeds       int
	market      int
	totalFeeds  int
	totalMarket int
	last        int
	out         chan<- Progress
}

func newTracker(totalFeeds, totalMarket int, out chan<- Progress) *tracker {
	return &tracker{totalFeeds: totalFeeds, totalMarket: totalMarket, out: out}
}

func (t *tracker) feedDone() {
	t.mu.Lock()
	t.feeds++
	t.emitLocked(fmt.Sprintf("Loaded feed %d of %d", t.feeds, t.totalFeeds))
	t.mu.Unlock()
}

func (t *tracker) marketDone(msg string) {
	t.mu.Lock()
	t.market++
	t.emitLocked(msg)
	t.mu.Unlock()
}

func (t *tracker) finish() {
	t.mu.Lock()
	t.feeds = t.totalFeeds
	t.market = t.totalMarket
	t.emitLocked("Finished loading")
	t.mu.Unlock()
}

func (t *tracker) emitLocked(msg string) {
	percent := 0
	if t.totalFeeds > 0 {
		percent += t.feeds * 50 / t.totalFeeds
	} else {
		percent += 50
	}
	if t.totalMarket > 0 {
		percent += t.market * 50 / t.totalMarket
	} else {
		percent += 50
	}
	if percent < t.last {
		percent = t.last
	}
	t.last = percent
	select {
	case t.out <- Progress{Percent: percent, Message: msg}:
	default:
	}
}
