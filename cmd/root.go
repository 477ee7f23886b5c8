package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig      string
	flagHeadless    bool
	flagNoNarration bool
	flagRefresh     string
)

var rootCmd = &cobra.Command{
	Use:   "streampulse",
	Short: "Rotating news, market, and stats dashboard",
	Long: "StreamPulse aggregates RSS feeds, stock quotes, and global statistics\n" +
		"into a continuously rotating terminal dashboard with sentiment analysis\n" +
		"and optional narration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagHeadless {
			return runFetch(cmd, args)
		}
		return runTUI(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&flagNoNarration, "no-narration", false, "disable text-to-speech narration")
	rootCmd.PersistentFlags().StringVar(&flagRefresh, "refresh", "", "override the background refresh interval (e.g. 5m)")
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", false, "run one fetch cycle and print results instead of the dashboard")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("streampulse %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
