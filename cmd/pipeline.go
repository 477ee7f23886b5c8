package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ProhibitedTV/StreamPulse/internal/config"
	"github.com/ProhibitedTV/StreamPulse/internal/feed"
	"github.com/ProhibitedTV/StreamPulse/internal/fetch"
	"github.com/ProhibitedTV/StreamPulse/internal/imagecache"
	"github.com/ProhibitedTV/StreamPulse/internal/narration"
	"github.com/ProhibitedTV/StreamPulse/internal/rotation"
	"github.com/ProhibitedTV/StreamPulse/internal/sentiment"
	"github.com/ProhibitedTV/StreamPulse/internal/stats"
	"github.com/ProhibitedTV/StreamPulse/internal/stocks"
)

// pipeline is the fully wired acquisition stack shared by the dashboard
// and the headless fetch command.
type pipeline struct {
	cfg      *config.Config
	log      *slog.Logger
	logFile  *os.File
	images   *imagecache.Store
	orch     *fetch.Orchestrator
	engine   *rotation.Engine
	narrator *narration.Narrator
}

// buildPipeline wires config, logging, fetchers, the orchestrator, and the
// rotation engine. In headless mode logs go to stderr; otherwise the TUI
// owns the terminal and logs go to a file under the XDG state dir.
func buildPipeline(headless bool) (*pipeline, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	p := &pipeline{cfg: cfg}
	if headless {
		p.log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	} else {
		path := config.LogPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		p.logFile = f
		p.log = slog.New(slog.NewTextHandler(f, nil))
	}

	timeout := cfg.FetchTimeoutDuration()
	fetcher := feed.NewFetcher(feed.NewHealth(), feed.Options{
		Timeout: timeout,
		Retries: cfg.Retries(),
		Logger:  p.log,
	})
	market := stocks.NewClient(cfg.MarketAPIKey(), timeout, p.log)
	statsClient := stats.NewClient(timeout, p.log)

	p.images, err = imagecache.Open(config.ImageCacheDir(), timeout, p.log)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("opening image cache: %w", err)
	}

	var categories []fetch.CategoryFeeds
	for _, cat := range cfg.EnabledCategories() {
		categories = append(categories, fetch.CategoryFeeds{Name: cat.Name, URLs: cat.Feeds})
	}
	p.orch = fetch.New(fetch.Options{
		Fetcher:    fetcher,
		Market:     market,
		Stats:      statsClient,
		Categories: categories,
		Symbols:    cfg.Market.Symbols,
		Workers:    cfg.WorkerCount(),
		Logger:     p.log,
	})

	var speaker narration.Speaker = narration.NopSpeaker{}
	if cfg.Narration.Enabled && !flagNoNarration && !headless {
		speaker = &narration.ExecSpeaker{Command: cfg.Narration.Command}
	}
	p.narrator = narration.New(speaker, narration.NewLock(), cfg.NarrationTimeout(), p.log)

	refreshEvery, err := refreshTicks(cfg, flagRefresh)
	if err != nil {
		p.close()
		return nil, err
	}
	p.engine = rotation.New(rotation.Options{
		Categories:   cfg.CategoryNames(),
		Interval:     cfg.RotationDuration(),
		RefreshEvery: refreshEvery,
		Analyzer:     sentiment.NewClient(cfg.Sentiment.Endpoint, cfg.Sentiment.Model, 30*time.Second),
		Narrator:     p.narrator,
		Refresh:      p.orch.RefreshFeeds,
		Logger:       p.log,
	})

	return p, nil
}

func (p *pipeline) close() {
	if p.narrator != nil {
		p.narrator.Stop()
	}
	if p.images != nil {
		p.images.Close()
	}
	if p.logFile != nil {
		p.logFile.Close()
	}
}

// refreshTicks converts the refresh interval into rotation ticks. The
// --refresh flag overrides the config interval.
func refreshTicks(cfg *config.Config, override string) (int, error) {
	interval := cfg.RefreshDuration()
	if override != "" {
		d, err := parseInterval(override)
		if err != nil {
			return 0, fmt.Errorf("invalid --refresh value: %w", err)
		}
		interval = d
	}
	ticks := int(interval / cfg.RotationDuration())
	if ticks < 1 {
		ticks = 1
	}
	return ticks, nil
}

func parseInterval(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
