package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sengage/internal/analytics"
	"sengage/internal/ledger"
)

var (
	statsDays   int
	statsRecent int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show engagement statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "History window in days")
	statsCmd.Flags().IntVar(&statsRecent, "recent", 0, "Also list the N most recent entries")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := ledger.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	reporter := analytics.NewReporter(store)
	summary, err := reporter.Summarize(statsDays)
	if err != nil {
		return err
	}
	rate, err := reporter.SuccessRate(statsDays)
	if err != nil {
		return err
	}

	fmt.Println("Engagement statistics")
	fmt.Println("---------------------")
	fmt.Printf("Today:        %d\n", summary.Today)
	fmt.Printf("This week:    %d\n", summary.ThisWeek)
	fmt.Printf("Success rate: %.1f%% (last %d days)\n\n", rate, statsDays)

	if len(summary.ByPlatform) > 0 {
		fmt.Println("By platform:")
		for p, c := range summary.ByPlatform {
			fmt.Printf("  %-10s %d/%d succeeded (%d transient, %d permanent failures)\n",
				p, c.Succeeded, c.Total, c.Transient, c.Permanent)
		}
		fmt.Println()
	}

	if len(summary.BySource) > 0 {
		fmt.Println("Successful comments by source:")
		for source, n := range summary.BySource {
			fmt.Printf("  %-10s %d\n", source, n)
		}
		fmt.Println()
	}

	if len(summary.Daily) > 0 {
		fmt.Println("Daily:")
		for _, d := range summary.Daily {
			fmt.Printf("  %s  %d succeeded, %d failed\n", d.Day, d.Succeeded, d.Failed)
		}
	}

	if statsRecent > 0 {
		entries, err := reporter.RecentEntries(statsRecent)
		if err != nil {
			return err
		}
		fmt.Println("\nRecent entries:")
		for _, e := range entries {
			fmt.Printf("  %s  %-9s %-18s %s\n",
				e.CreatedAt.Format("2006-01-02 15:04"), e.Platform, e.Status, e.CandidateID)
		}
	}

	return nil
}
