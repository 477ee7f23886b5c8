package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ProhibitedTV/StreamPulse/internal/tui"
)

func runTUI(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(false)
	if err != nil {
		return err
	}
	defer p.close()

	progress, results := p.orch.LoadAll(context.Background())

	return tui.Run(tui.RunOpts{
		Cfg:      p.cfg,
		Engine:   p.engine,
		Progress: progress,
		Results:  results,
	})
}
