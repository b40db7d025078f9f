// Package engage implements the engagement orchestration engine: the control
// loop that turns discovered candidates into a rate-limited, deduplicated
// sequence of posted comments, recording every outcome in the ledger.
package engage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sengage/internal/compose"
	"sengage/internal/ledger"
	"sengage/internal/platform"
)

// Store is the slice of the ledger the orchestrator writes and consults.
// The ledger is the single shared mutable resource: it alone enforces the
// at-most-one-success invariant across runs and processes.
type Store interface {
	HasSucceeded(p platform.Platform, candidateID string) (bool, error)
	Record(e ledger.Entry) error
	CountToday(p platform.Platform) (int, error)
}

// Options configures one platform run.
type Options struct {
	Tone       compose.Tone
	DailyLimit int
	MinDelay   time.Duration
	MaxDelay   time.Duration

	// MaxPosts caps successful posts within this run, independent of the
	// cross-run daily limit. Zero means no per-run cap.
	MaxPosts int

	// SkipEngaged gates the ledger dedup check. False is an explicit
	// opt-out that permits re-engaging known candidates.
	SkipEngaged bool

	// MaxRetries bounds per-candidate retries after a transient failure.
	MaxRetries int

	// RetryBackoff is the wait before a retry attempt. Zero defaults to
	// MinDelay.
	RetryBackoff time.Duration
}

// Validate reports configuration errors. These are fatal before the loop,
// never surfaced per candidate.
func (o Options) Validate() error {
	if o.DailyLimit <= 0 {
		return fmt.Errorf("daily limit must be positive, got %d", o.DailyLimit)
	}
	if o.MinDelay < 0 {
		return fmt.Errorf("min delay must be non-negative, got %s", o.MinDelay)
	}
	if o.MaxDelay < o.MinDelay {
		return fmt.Errorf("max delay (%s) must be >= min delay (%s)", o.MaxDelay, o.MinDelay)
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", o.MaxRetries)
	}
	if _, err := compose.ParseTone(string(o.Tone)); err != nil {
		return err
	}
	return nil
}

func (o Options) retryBackoff() time.Duration {
	if o.RetryBackoff > 0 {
		return o.RetryBackoff
	}
	return o.MinDelay
}

// RunSummary reports the outcome of one platform run.
type RunSummary struct {
	RunID     string
	Platform  platform.Platform
	Attempted int // candidates for which at least one post call was made
	Succeeded int
	Failed    int
	Skipped   int // candidates skipped by the dedup guard
	Elapsed   time.Duration
	Cancelled bool
}

// Orchestrator owns the engagement control loop for a single platform run.
// One candidate is fully processed before the next is considered; actions
// for one platform never overlap.
type Orchestrator struct {
	adapter  platform.Adapter
	composer *compose.Composer
	store    Store
	governor *Governor
	logger   *zap.Logger
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(adapter platform.Adapter, composer *compose.Composer, store Store, governor *Governor, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		adapter:  adapter,
		composer: composer,
		store:    store,
		governor: governor,
		logger:   logger,
	}
}

// Run executes one engagement campaign over the adapter's discovery results.
//
// Expected terminations (quota exhaustion, per-run post cap, operator
// cancellation) end the loop and return a summary with a nil error. A single
// candidate's failure never fails the run; only configuration errors or a
// discovery failure do, and both happen before any action is posted.
func (o *Orchestrator) Run(ctx context.Context, criteria platform.Criteria, opts Options) (*RunSummary, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	summary := &RunSummary{
		RunID:    uuid.NewString(),
		Platform: o.adapter.Platform(),
	}

	candidates, err := o.adapter.Discover(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("discovery failed for %s: %w", summary.Platform, err)
	}

	o.logger.Info("starting engagement run",
		zap.String("run_id", summary.RunID),
		zap.String("platform", string(summary.Platform)),
		zap.Int("candidates", len(candidates)),
		zap.Int("daily_limit", opts.DailyLimit))

	var lastAction time.Time

	for _, cand := range candidates {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		if opts.MaxPosts > 0 && summary.Succeeded >= opts.MaxPosts {
			o.logger.Info("per-run post cap reached", zap.Int("max_posts", opts.MaxPosts))
			break
		}

		if opts.SkipEngaged {
			done, err := o.store.HasSucceeded(cand.Platform, cand.ID)
			if err != nil {
				return nil, fmt.Errorf("ledger lookup failed: %w", err)
			}
			if done {
				summary.Skipped++
				o.logger.Debug("skipping already-engaged candidate",
					zap.String("candidate", cand.ID))
				continue
			}
		}

		// Quota only decreases monotonically within a run, so exhaustion
		// terminates the loop rather than skipping per candidate.
		remaining, err := o.governor.QuotaRemaining(cand.Platform, opts.DailyLimit)
		if err != nil {
			return nil, err
		}
		if remaining <= 0 {
			o.logger.Info("daily quota exhausted, stopping run",
				zap.Int("daily_limit", opts.DailyLimit))
			break
		}

		draft := o.composer.Compose(ctx, cand, opts.Tone)

		wait := o.governor.NextWait(lastAction, opts.MinDelay, opts.MaxDelay)
		if !sleepCtx(ctx, wait) {
			summary.Cancelled = true
			break
		}

		status := o.engageCandidate(ctx, cand, draft, opts)
		lastAction = time.Now()

		summary.Attempted++
		switch status {
		case platform.StatusSuccess:
			summary.Succeeded++
		default:
			summary.Failed++
		}

		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
	}

	summary.Elapsed = time.Since(start)

	o.logger.Info("engagement run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Bool("cancelled", summary.Cancelled),
		zap.Duration("elapsed", summary.Elapsed))

	return summary, nil
}

// engageCandidate posts the draft, records the outcome, and retries once
// per the transient-failure policy. The in-flight post always runs to
// completion and its result is always recorded, even under cancellation.
func (o *Orchestrator) engageCandidate(ctx context.Context, cand platform.Candidate, draft compose.Draft, opts Options) platform.ActionStatus {
	result := o.postAndRecord(cand, draft)

	for attempt := 0; result.Status == platform.StatusTransientFailure && attempt < opts.MaxRetries; attempt++ {
		if !sleepCtx(ctx, opts.retryBackoff()) {
			// Cancelled during backoff; the failed attempt is already
			// recorded, so stop here.
			return result.Status
		}
		o.logger.Debug("retrying after transient failure",
			zap.String("candidate", cand.ID),
			zap.Int("attempt", attempt+1))
		result = o.postAndRecord(cand, draft)
	}

	return result.Status
}

// postAndRecord invokes the adapter and persists the outcome regardless of
// status. The adapter call is deliberately not given a cancellable context:
// a post in flight must resolve and be recorded before the run reports
// itself cancelled.
func (o *Orchestrator) postAndRecord(cand platform.Candidate, draft compose.Draft) platform.ActionResult {
	result := o.adapter.PostComment(context.Background(), cand, draft.Text)

	entry := ledger.Entry{
		Platform:    cand.Platform,
		CandidateID: cand.ID,
		Author:      cand.Author,
		Status:      result.Status,
		Source:      string(draft.Source),
		Comment:     draft.Text,
		ErrorDetail: result.ErrorDetail,
	}
	if err := o.store.Record(entry); err != nil {
		o.logger.Error("failed to record engagement outcome",
			zap.String("candidate", cand.ID),
			zap.Error(err))
	}

	switch result.Status {
	case platform.StatusSuccess:
		o.logger.Info("comment posted",
			zap.String("candidate", cand.ID),
			zap.String("author", cand.Author),
			zap.String("source", string(draft.Source)))
	default:
		o.logger.Warn("post attempt failed",
			zap.String("candidate", cand.ID),
			zap.String("status", string(result.Status)),
			zap.String("detail", result.ErrorDetail))
	}

	return result
}

// sleepCtx waits for d, returning false if the context is cancelled first.
// The wait is the run's suspension point: cancellation takes effect here or
// between candidates, never mid-post.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
