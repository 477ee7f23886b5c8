// Package rotation cycles each category's stories on a fixed tick,
// enriches the story on screen with a sentiment label, and hands narration
// to the serialized speaker. Categories rotate independently; the queue is
// cyclic, so a story returns after every other story in its category has
// had its turn.
package rotation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ProhibitedTV/StreamPulse/internal/feed"
	"github.com/ProhibitedTV/StreamPulse/internal/narration"
	"github.com/ProhibitedTV/StreamPulse/internal/sentiment"
)

// State is the lifecycle of one category's rotation.
type State int

const (
	StateEmpty State = iota
	StateLoaded
	StateRotating
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateRotating:
		return "rotating"
	default:
		return "empty"
	}
}

// Snapshot is what the display layer sees for one category.
type Snapshot struct {
	Category  string
	State     State
	Story     feed.StoryEntry
	Index     int
	Total     int
	RotatedAt time.Time
}

// ring is a cyclic cursor over a category's stories. Advancing moves the
// head to the back by index arithmetic; the slice itself never shuffles.
type ring struct {
	stories []feed.StoryEntry
	cursor  int
	state   State
}

func (r *ring) advance() (int, *feed.StoryEntry) {
	if len(r.stories) == 0 {
		r.state = StateEmpty
		return 0, nil
	}
	r.state = StateRotating
	i := r.cursor
	r.cursor = (r.cursor + 1) % len(r.stories)
	return i, &r.stories[i]
}

// replace swaps in a fresh story set without disturbing the story on
// screen; the next tick simply draws from the new queue.
func (r *ring) replace(stories []feed.StoryEntry) {
	r.stories = stories
	if len(stories) == 0 {
		r.cursor = 0
		r.state = StateEmpty
		return
	}
	r.cursor = r.cursor % len(stories)
	if r.state == StateEmpty {
		r.state = StateLoaded
	}
}

// RefreshFunc refetches one category's stories in the background.
type RefreshFunc func(ctx context.Context, category string) []feed.StoryEntry

// Options wires an Engine.
type Options struct {
	Categories   []string
	Interval     time.Duration
	RefreshEvery int // in ticks; 0 disables background refresh
	Analyzer     sentiment.Analyzer
	Narrator     *narration.Narrator
	Refresh      RefreshFunc
	Logger       *slog.Logger
}

// Engine owns one rotation per category. It never blocks on network I/O
// itself: sentiment runs on its own goroutine and narration goes through
// the narrator's queue.
type Engine struct {
	categories   []string
	interval     time.Duration
	refreshEvery int
	analyzer     sentiment.Analyzer
	narrator     *narration.Narrator
	refresh      RefreshFunc
	log          *slog.Logger

	mu      sync.Mutex
	queues  map[string]*ring
	current map[string]Snapshot

	updates chan Snapshot
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		categories:   opts.Categories,
		interval:     opts.Interval,
		refreshEvery: opts.RefreshEvery,
		analyzer:     opts.Analyzer,
		narrator:     opts.Narrator,
		refresh:      opts.Refresh,
		log:          opts.Logger,
		queues:       make(map[string]*ring),
		current:      make(map[string]Snapshot),
		updates:      make(chan Snapshot, 64),
	}
	for _, cat := range opts.Categories {
		e.queues[cat] = &ring{state: StateEmpty}
		e.current[cat] = Snapshot{Category: cat, State: StateEmpty}
	}
	return e
}

// Load enqueues fetched stories. Categories with no stories stay Empty.
func (e *Engine) Load(stories map[string][]feed.StoryEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cat := range e.categories {
		e.queues[cat].replace(stories[cat])
	}
}

// Updates is the single-writer stream of snapshots for the display layer.
func (e *Engine) Updates() <-chan Snapshot {
	return e.updates
}

// Current returns the latest snapshot for a category.
func (e *Engine) Current(category string) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current[category]
}

// Start launches one rotation loop per category. The first story in each
// category is published immediately rather than after the first tick.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	for _, cat := range e.categories {
		e.wg.Add(1)
		go e.runCategory(ctx, cat)
	}
}

// Stop halts all rotation loops and waits for them to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) runCategory(ctx context.Context, category string) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick(ctx, category)
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ticks++
			if e.refreshEvery > 0 && e.refresh != nil && ticks%e.refreshEvery == 0 {
				go e.backgroundRefresh(ctx, category)
			}
			e.tick(ctx, category)
		}
	}
}

func (e *Engine) tick(ctx context.Context, category string) {
	e.mu.Lock()
	r := e.queues[category]
	idx, story := r.advance()
	if story == nil {
		prev := e.current[category]
		snap := Snapshot{Category: category, State: StateEmpty, RotatedAt: time.Now()}
		e.current[category] = snap
		e.mu.Unlock()
		// Announce Empty once; ticks while a pane stays empty carry no news.
		if prev.State != StateEmpty || prev.RotatedAt.IsZero() {
			e.publish(snap)
		}
		return
	}
	snap := Snapshot{
		Category:  category,
		State:     StateRotating,
		Story:     *story,
		Index:     idx,
		Total:     len(r.stories),
		RotatedAt: time.Now(),
	}
	e.current[category] = snap
	needsSentiment := story.Sentiment == ""
	link := story.Link
	e.mu.Unlock()

	e.publish(snap)
	if needsSentiment && e.analyzer != nil {
		go e.enrich(ctx, category, link, snap)
	}
}

// enrich attaches a sentiment label to a story. Failures tag the story
// Unknown and are not retried; sentiment never blocks display.
func (e *Engine) enrich(ctx context.Context, category, link string, snap Snapshot) {
	text := snap.Story.Title
	if snap.Story.Description != "" {
		text += ". " + snap.Story.Description
	}

	label, err := e.analyzer.Analyze(ctx, text)
	if err != nil {
		e.log.Warn("sentiment analysis failed", "category", category, "err", err)
		label = sentiment.Unknown
	}

	e.mu.Lock()
	r := e.queues[category]
	for i := range r.stories {
		if r.stories[i].Link == link {
			r.stories[i].Sentiment = string(label)
			break
		}
	}
	cur := e.current[category]
	updated := cur.Story.Link == link
	if updated {
		cur.Story.Sentiment = string(label)
		e.current[category] = cur
	}
	e.mu.Unlock()

	if updated {
		e.publish(cur)
	}
	if e.narrator != nil && err == nil {
		e.narrator.Enqueue("Sentiment analysis result: " + string(label))
	}
}

func (e *Engine) backgroundRefresh(ctx context.Context, category string) {
	stories := e.refresh(ctx, category)
	if len(stories) == 0 {
		// Keep showing what we have rather than blanking the pane.
		return
	}
	e.mu.Lock()
	e.queues[category].replace(stories)
	e.mu.Unlock()
	e.log.Info("refreshed category", "category", category, "stories", len(stories))
}

func (e *Engine) publish(snap Snapshot) {
	select {
	case e.updates <- snap:
	default:
	}
}
