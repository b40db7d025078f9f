package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sengage/internal/discovery"
	"sengage/internal/platform"

	// Registered platform adapters.
	_ "sengage/internal/adapters/instagram"
)

var (
	discoverPlatform string
	discoverHashtags string
	discoverKeywords string
	discoverLocation string
	discoverLimit    int
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover posts matching criteria without engaging",
	Long: `Searches the platform for posts matching the given hashtags, keywords
and location, scores them, and prints the ranked results. No comments
are posted and nothing is written to the ledger.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverPlatform, "platform", "instagram", "Platform to search")
	discoverCmd.Flags().StringVar(&discoverHashtags, "hashtags", "", "Comma-separated hashtags")
	discoverCmd.Flags().StringVar(&discoverKeywords, "keywords", "", "Comma-separated keywords")
	discoverCmd.Flags().StringVar(&discoverLocation, "location", "", "Location filter")
	discoverCmd.Flags().IntVar(&discoverLimit, "limit", 20, "Maximum results")
}

// splitList turns a comma-separated flag value into a clean slice.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func buildCriteria() platform.Criteria {
	return platform.Criteria{
		Hashtags: splitList(discoverHashtags),
		Keywords: splitList(discoverKeywords),
		Location: discoverLocation,
		Limit:    discoverLimit,
	}
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p := platform.Platform(discoverPlatform)
	adapter, err := platform.New(p, cfg.Platforms[discoverPlatform], logger)
	if err != nil {
		return fmt.Errorf("failed to initialize adapter: %w", err)
	}
	defer adapter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := discovery.NewEngine(logger)
	results, err := engine.Discover(ctx, adapter, buildCriteria())
	if err != nil {
		return err
	}

	fmt.Printf("Found %d posts:\n\n", len(results))
	for _, r := range results {
		fmt.Printf("  %s\n", r.Candidate.URL)
		fmt.Printf("    score: %.1f | %s\n\n", r.Score, r.Reason)
	}
	return nil
}
