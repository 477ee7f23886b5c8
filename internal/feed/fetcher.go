package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
)

const (
	// maxStoriesPerFeed caps how many entries one feed contributes per cycle.
	maxStoriesPerFeed = 3

	descriptionLimit = 300
)

// retryableError marks a failure worth another attempt: timeouts, non-2xx
// responses, and malformed payloads that a later fetch may serve correctly.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Options tunes a Fetcher. Zero values fall back to the baseline behavior.
type Options struct {
	Timeout     time.Duration
	Retries     int
	BackoffBase time.Duration
	UserAgent   string
	Logger      *slog.Logger
}

// Fetcher fetches and parses one feed source at a time, with bounded
// exponential-backoff retries. Chronically failing sources are disabled in
// the shared Health registry and never fetched again in the same run.
type Fetcher struct {
	parser  *gofeed.Parser
	client  *http.Client
	health  *Health
	retries int
	backoff time.Duration
	agent   string
	log     *slog.Logger
}

func NewFetcher(health *Health, opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "StreamPulse/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Fetcher{
		parser:  gofeed.NewParser(),
		client:  &http.Client{Timeout: opts.Timeout},
		health:  health,
		retries: opts.Retries,
		backoff: opts.BackoffBase,
		agent:   opts.UserAgent,
		log:     opts.Logger,
	}
}

// Fetch retrieves stories from one source. A disabled source returns
// ErrSourceDisabled immediately with no network call.
func (f *Fetcher) Fetch(ctx context.Context, source Source) ([]StoryEntry, error) {
	health := f.health.For(source.ID)
	if health.Disabled() {
		return nil, fmt.Errorf("%s: %w", source.URL, ErrSourceDisabled)
	}

	var stories []StoryEntry
	op := func() error {
		entries, err := f.fetchOnce(ctx, source)
		if err != nil {
			health.recordFailure(err)
			var re *retryableError
			if !errors.As(err, &re) {
				return backoff.Permanent(err)
			}
			return err
		}
		stories = entries
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = f.backoff
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	// retries is the total attempt budget, not the count after the first try.
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(f.retries-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		health.disable()
		f.log.Warn("source disabled after repeated failures",
			"url", source.URL, "category", source.Category, "failures", health.Failures(), "err", err)
		return nil, fmt.Errorf("%s: %w: %w", source.URL, ErrSourceDisabled, err)
	}
	return stories, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, source Source) ([]StoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.agent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &retryableError{fmt.Errorf("fetching %s: %w", source.URL, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &retryableError{fmt.Errorf("fetching %s: unexpected status %d", source.URL, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &retryableError{fmt.Errorf("reading %s: %w", source.URL, err)}
	}

	var entries []StoryEntry
	if isHTML(resp.Header.Get("Content-Type")) {
		entries, err = f.scrapeLinks(source, body)
	} else {
		entries, err = f.parseFeed(source, body)
	}
	if err != nil {
		return nil, &retryableError{err}
	}
	// A 200 with zero usable entries is a failure, not an empty success;
	// it would otherwise mask a broken feed forever.
	if len(entries) == 0 {
		return nil, &retryableError{fmt.Errorf("parsing %s: no entries", source.URL)}
	}
	return entries, nil
}

func (f *Fetcher) parseFeed(source Source, body []byte) ([]StoryEntry, error) {
	parsed, err := f.parser.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source.URL, err)
	}

	entries := make([]StoryEntry, 0, maxStoriesPerFeed)
	for _, item := range parsed.Items {
		if len(entries) >= maxStoriesPerFeed {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}
		var pub time.Time
		if item.PublishedParsed != nil {
			pub = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = *item.UpdatedParsed
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}

		entries = append(entries, StoryEntry{
			Title:       item.Title,
			Description: truncate(stripHTML(desc), descriptionLimit),
			Link:        item.Link,
			ImageURL:    itemImage(item),
			Published:   pub,
			Category:    source.Category,
			Source:      parsed.Title,
		})
	}
	return entries, nil
}

// scrapeLinks is the best-effort fallback for feed URLs that serve plain
// HTML: pull absolute anchors off the page and treat them as headlines.
func (f *Fetcher) scrapeLinks(source Source, body []byte) ([]StoryEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("scraping %s: %w", source.URL, err)
	}

	base, err := url.Parse(source.URL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []StoryEntry
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())
		if len(text) < 20 {
			return true
		}
		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return true
		}
		link := u.String()
		if seen[link] {
			return true
		}
		seen[link] = true
		entries = append(entries, StoryEntry{
			Title:     text,
			Link:      link,
			Category:  source.Category,
			Source:    base.Hostname(),
			Published: time.Now(),
		})
		return len(entries) < maxStoriesPerFeed
	})
	return entries, nil
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

func isHTML(contentType string) bool {
	return strings.Contains(contentType, "text/html")
}
