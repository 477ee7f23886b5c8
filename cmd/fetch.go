package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ProhibitedTV/StreamPulse/internal/feed"
)

// Thumbnail size used when warming the image cache.
const (
	warmWidth  = 240
	warmHeight = 180
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one fetch cycle and print the results",
	Long: "Fetch all feeds, quotes, and statistics once, warm the image cache,\n" +
		"and print a summary. Useful for cron jobs and for checking sources\n" +
		"without launching the dashboard.",
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(true)
	if err != nil {
		return err
	}
	defer p.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	progress, results := p.orch.LoadAll(ctx)
	for update := range progress {
		fmt.Printf("[%3d%%] %s\n", update.Percent, update.Message)
	}
	result := <-results
	if result == nil {
		return fmt.Errorf("fetch produced no result")
	}

	categories := make([]string, 0, len(result.Stories))
	for name := range result.Stories {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	fmt.Println()
	for _, name := range categories {
		stories := result.Stories[name]
		fmt.Printf("%s: %d stories\n", name, len(stories))
		for _, s := range stories {
			fmt.Printf("  - %s\n", s.Title)
		}
	}

	fmt.Println()
	fmt.Println(result.TickerText(p.cfg.Market.Symbols))
	fmt.Printf("US National Debt: %s\n", result.Stats.USDebt)
	fmt.Printf("Global CO2: %s\n", result.Stats.GlobalCO2)

	warmed := warmImageCache(ctx, p, result.Stories)
	if warmed > 0 {
		fmt.Printf("\nWarmed image cache with %d thumbnails\n", warmed)
	}
	return nil
}

// warmImageCache prefetches story thumbnails so the dashboard never waits
// on image downloads. Failures fall back to the placeholder and are not
// worth reporting per image.
func warmImageCache(ctx context.Context, p *pipeline, stories map[string][]feed.StoryEntry) int {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.WorkerCount())

	count := 0
	for _, entries := range stories {
		for _, entry := range entries {
			if entry.ImageURL == "" {
				continue
			}
			count++
			url := entry.ImageURL
			g.Go(func() error {
				p.images.Get(ctx, url, warmWidth, warmHeight)
				return nil
			})
		}
	}
	g.Wait()
	return count
}
