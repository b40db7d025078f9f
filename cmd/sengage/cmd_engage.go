package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sengage/internal/compose"
	"sengage/internal/discovery"
	"sengage/internal/engage"
	"sengage/internal/ledger"
	"sengage/internal/llm"
	"sengage/internal/platform"
)

var (
	engagePlatforms []string
	engageHashtags  string
	engageKeywords  string
	engageLocation  string
	engageLimit     int
	engageMaxPosts  int
	engageTone      string
)

var engageCmd = &cobra.Command{
	Use:   "engage",
	Short: "Run an engagement campaign",
	Long: `Discovers candidate posts and engages them one at a time: compose a
comment, wait a randomized human-paced delay, post, and record the
outcome in the ledger. The run stops early when the daily quota is
exhausted or on Ctrl-C; an in-flight post always completes and is
recorded first.

Runs for different platforms proceed concurrently; actions within one
platform never overlap.`,
	RunE: runEngage,
}

func init() {
	engageCmd.Flags().StringSliceVar(&engagePlatforms, "platform", []string{"instagram"}, "Platforms to engage on")
	engageCmd.Flags().StringVar(&engageHashtags, "hashtags", "", "Comma-separated hashtags (required)")
	engageCmd.Flags().StringVar(&engageKeywords, "keywords", "", "Comma-separated keywords")
	engageCmd.Flags().StringVar(&engageLocation, "location", "", "Location filter")
	engageCmd.Flags().IntVar(&engageLimit, "limit", 50, "Max posts to discover")
	engageCmd.Flags().IntVar(&engageMaxPosts, "max-posts", 0, "Max successful posts this run (0 = daily limit only)")
	engageCmd.Flags().StringVar(&engageTone, "tone", "", "Comment tone (overrides config)")
	_ = engageCmd.MarkFlagRequired("hashtags")
}

func runEngage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	toneStr := cfg.Engagement.Tone
	if engageTone != "" {
		toneStr = engageTone
	}
	tone, err := compose.ParseTone(toneStr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := ledger.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	if client == nil {
		logger.Info("no LLM provider configured, using template comments")
	}
	composer := compose.New(client, logger)
	governor := engage.NewGovernor(store)

	criteria := platform.Criteria{
		Hashtags: splitList(engageHashtags),
		Keywords: splitList(engageKeywords),
		Location: engageLocation,
		Limit:    engageLimit,
	}
	opts := engage.Options{
		Tone:        tone,
		DailyLimit:  cfg.Engagement.DailyLimit,
		MinDelay:    cfg.Engagement.MinDelay(),
		MaxDelay:    cfg.Engagement.MaxDelay(),
		MaxPosts:    engageMaxPosts,
		SkipEngaged: cfg.Engagement.SkipAlreadyEngaged(),
		MaxRetries:  cfg.Engagement.MaxRetries,
	}

	// Adapters are created up front so a misconfigured platform fails the
	// command before anything is posted anywhere.
	adapters := make([]platform.Adapter, 0, len(engagePlatforms))
	for _, name := range engagePlatforms {
		adapter, err := platform.New(platform.Platform(name), cfg.Platforms[name], logger)
		if err != nil {
			return fmt.Errorf("failed to initialize adapter: %w", err)
		}
		adapters = append(adapters, adapter)
		defer adapter.Close()
	}

	var (
		mu        sync.Mutex
		summaries []*engage.RunSummary
	)

	engine := discovery.NewEngine(logger)

	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range adapters {
		adapter := adapter
		g.Go(func() error {
			// The orchestrator consumes filtered, score-ranked candidates:
			// the best-scored posts are engaged first, before quota runs out.
			ranked := discovery.Ranked(adapter, engine)
			orch := engage.NewOrchestrator(ranked, composer, store, governor,
				logger.With(zap.String("platform", string(adapter.Platform()))))
			summary, err := orch.Run(gctx, criteria, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			summaries = append(summaries, summary)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, s := range summaries {
		fmt.Printf("\n%s run %s\n", s.Platform, s.RunID)
		fmt.Printf("  attempted: %d\n", s.Attempted)
		fmt.Printf("  succeeded: %d\n", s.Succeeded)
		fmt.Printf("  failed:    %d\n", s.Failed)
		fmt.Printf("  skipped:   %d\n", s.Skipped)
		fmt.Printf("  elapsed:   %s\n", s.Elapsed.Round(time.Second))
		if s.Cancelled {
			fmt.Println("  run cancelled by operator")
		}
	}
	return nil
}
