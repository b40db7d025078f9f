package engage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sengage/internal/compose"
	"sengage/internal/discovery"
	"sengage/internal/ledger"
	"sengage/internal/platform"
)

// fakeAdapter serves a fixed candidate stream and scripted post results.
type fakeAdapter struct {
	mu         sync.Mutex
	candidates []platform.Candidate
	results    map[string][]platform.ActionResult // consumed per post call
	posted     []string
	onPost     func(candidateID string)
}

func (f *fakeAdapter) Platform() platform.Platform { return platform.Instagram }

func (f *fakeAdapter) Login(ctx context.Context, creds platform.Credentials) error { return nil }

func (f *fakeAdapter) Discover(ctx context.Context, criteria platform.Criteria) ([]platform.Candidate, error) {
	return f.candidates, nil
}

func (f *fakeAdapter) PostComment(ctx context.Context, cand platform.Candidate, text string) platform.ActionResult {
	f.mu.Lock()
	f.posted = append(f.posted, cand.ID)
	queue := f.results[cand.ID]
	var result platform.ActionResult
	if len(queue) == 0 {
		result = platform.Success()
	} else {
		result = queue[0]
		f.results[cand.ID] = queue[1:]
	}
	hook := f.onPost
	f.mu.Unlock()

	if hook != nil {
		hook(cand.ID)
	}
	return result
}

func (f *fakeAdapter) Close() error { return nil }

func (f *fakeAdapter) postCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posted...)
}

func candidate(id string) platform.Candidate {
	return platform.Candidate{
		ID:           id,
		Platform:     platform.Instagram,
		Author:       "author-" + id,
		Caption:      "caption for " + id,
		Hashtags:     []string{"climbing"},
		DiscoveredAt: time.Now(),
	}
}

func testOptions() Options {
	return Options{
		Tone:         compose.ToneFriendly,
		DailyLimit:   20,
		MinDelay:     0,
		MaxDelay:     0,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
		SkipEngaged:  true,
	}
}

func newTestOrchestrator(t *testing.T, adapter *fakeAdapter) (*Orchestrator, *ledger.Ledger) {
	t.Helper()
	store, err := ledger.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	composer := compose.New(nil, nil) // template-only
	return NewOrchestrator(adapter, composer, store, NewGovernor(store), nil), store
}

func TestRunEngagesWithinDailyLimit(t *testing.T) {
	// Two candidates post successfully under daily_limit=2;
	// a third discovered in the same run is stopped by quota, not attempted.
	adapter := &fakeAdapter{
		candidates: []platform.Candidate{candidate("p1"), candidate("p2"), candidate("p3")},
		results:    map[string][]platform.ActionResult{},
	}
	orch, store := newTestOrchestrator(t, adapter)

	opts := testOptions()
	opts.DailyLimit = 2

	summary, err := orch.Run(context.Background(), platform.Criteria{}, opts)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, []string{"p1", "p2"}, adapter.postCalls())

	count, err := store.CountToday(platform.Instagram)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunSkipsAlreadyEngaged(t *testing.T) {
	// A success entry from a prior run means the candidate is
	// never posted again.
	adapter := &fakeAdapter{
		candidates: []platform.Candidate{candidate("seen")},
		results:    map[string][]platform.ActionResult{},
	}
	orch, store := newTestOrchestrator(t, adapter)

	require.NoError(t, store.Record(ledger.Entry{
		Platform:    platform.Instagram,
		CandidateID: "seen",
		Status:      platform.StatusSuccess,
		Comment:     "earlier run",
	}))

	summary, err := orch.Run(context.Background(), platform.Criteria{}, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Attempted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, adapter.postCalls())
}

func TestRunRetriesTransientOnce(t *testing.T) {
	// Transient then success within the retry bound; the final
	// entry is success and exactly one retry happens.
	adapter := &fakeAdapter{
		candidates: []platform.Candidate{candidate("flaky")},
		results: map[string][]platform.ActionResult{
			"flaky": {platform.Transient("rate limited"), platform.Success()},
		},
	}
	orch, store := newTestOrchestrator(t, adapter)

	summary, err := orch.Run(context.Background(), platform.Criteria{}, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []string{"flaky", "flaky"}, adapter.postCalls())

	entries, err := store.Query(time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, platform.StatusTransientFailure, entries[0].Status)
	assert.Equal(t, platform.StatusSuccess, entries[1].Status)
}

func TestRunDoesNotRetryPermanentFailure(t *testing.T) {
	adapter := &fakeAdapter{
		candidates: []platform.Candidate{candidate("gone"), candidate("ok")},
		results: map[string][]platform.ActionResult{
			"gone": {platform.Permanent("post deleted")},
		},
	}
	orch, store := newTestOrchestrator(t, adapter)

	summary, err := orch.Run(context.Background(), platform.Criteria{}, testOptions())
	require.NoError(t, err)

	// The failed candidate is recorded once and the run continues.
	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"gone", "ok"}, adapter.postCalls())

	done, err := store.HasSucceeded(platform.Instagram, "gone")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestRunStopsWhenQuotaAlreadyExhausted(t *testing.T) {
	adapter := &fakeAdapter{
		candidates: []platform.Candidate{candidate("late")},
		results:    map[string][]platform.ActionResult{},
	}
	orch, store := newTestOrchestrator(t, adapter)

	opts := testOptions()
	opts.DailyLimit = 2
	for _, id := range []string{"prior1", "prior2"} {
		require.NoError(t, store.Record(ledger.Entry{
			Platform:    platform.Instagram,
			CandidateID: id,
			Status:      platform.StatusSuccess,
		}))
	}

	summary, err := orch.Run(context.Background(), platform.Criteria{}, opts)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Attempted)
	assert.Empty(t, adapter.postCalls())
}

func TestRunQuotaNeverExceedsDailyLimit(t *testing.T) {
	var candidates []platform.Candidate
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		candidates = append(candidates, candidate(id))
	}
	adapter := &fakeAdapter{candidates: candidates, results: map[string][]platform.ActionResult{}}
	orch, store := newTestOrchestrator(t, adapter)

	opts := testOptions()
	opts.DailyLimit = 3

	summary, err := orch.Run(context.Background(), platform.Criteria{}, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)

	count, err := store.CountToday(platform.Instagram)
	require.NoError(t, err)
	assert.LessOrEqual(t, count, opts.DailyLimit)
}

func TestRunSkipEngagedOptOut(t *testing.T) {
	// skip_engaged=false bypasses the dedup guard by design.
	adapter := &fakeAdapter{
		candidates: []platform.Candidate{candidate("seen")},
		results:    map[string][]platform.ActionResult{},
	}
	orch, store := newTestOrchestrator(t, adapter)

	require.NoError(t, store.Record(ledger.Entry{
		Platform:    platform.Instagram,
		CandidateID: "seen",
		Status:      platform.StatusSuccess,
	}))

	opts := testOptions()
	opts.SkipEngaged = false

	summary, err := orch.Run(context.Background(), platform.Criteria{}, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, []string{"seen"}, adapter.postCalls())
}

func TestRunCancellationAfterInFlightPost(t *testing.T) {
	// Cancellation lands between candidates: the in-flight post completes
	// and its result is recorded before the run reports itself cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &fakeAdapter{
		candidates: []platform.Candidate{candidate("first"), candidate("second")},
		results:    map[string][]platform.ActionResult{},
	}
	adapter.onPost = func(string) { cancel() }

	orch, store := newTestOrchestrator(t, adapter)

	summary, err := orch.Run(ctx, platform.Criteria{}, testOptions())
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	assert.Equal(t, []string{"first"}, adapter.postCalls())
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)

	done, err := store.HasSucceeded(platform.Instagram, "first")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRunEngagesInScoreOrder(t *testing.T) {
	// Through the ranked wrapper the orchestrator consumes candidates best
	// score first, regardless of adapter discovery order.
	weak := candidate("weak")
	weak.Likes = 10
	strong := candidate("strong")
	strong.Likes = 900

	adapter := &fakeAdapter{
		candidates: []platform.Candidate{weak, strong},
		results:    map[string][]platform.ActionResult{},
	}
	orch, _ := newTestOrchestrator(t, adapter)
	orch.adapter = discovery.Ranked(adapter, discovery.NewEngine(nil))

	summary, err := orch.Run(context.Background(), platform.Criteria{}, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, []string{"strong", "weak"}, adapter.postCalls())
}

func TestRunCancellationDuringWait(t *testing.T) {
	// Cancellation lands during the governed wait before the second post:
	// the first result is already recorded, the second is never attempted.
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &fakeAdapter{
		candidates: []platform.Candidate{candidate("first"), candidate("second")},
		results:    map[string][]platform.ActionResult{},
	}
	adapter.onPost = func(string) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
	}

	orch, store := newTestOrchestrator(t, adapter)

	opts := testOptions()
	opts.MinDelay = time.Minute
	opts.MaxDelay = time.Minute

	summary, err := orch.Run(ctx, platform.Criteria{}, opts)
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	assert.Equal(t, []string{"first"}, adapter.postCalls())

	done, err := store.HasSucceeded(platform.Instagram, "first")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRunMaxPostsCap(t *testing.T) {
	adapter := &fakeAdapter{
		candidates: []platform.Candidate{candidate("a"), candidate("b"), candidate("c")},
		results:    map[string][]platform.ActionResult{},
	}
	orch, _ := newTestOrchestrator(t, adapter)

	opts := testOptions()
	opts.MaxPosts = 1

	summary, err := orch.Run(context.Background(), platform.Criteria{}, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, []string{"a"}, adapter.postCalls())
}

func TestOptionsValidate(t *testing.T) {
	base := testOptions()

	bad := base
	bad.DailyLimit = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.MinDelay = 2 * time.Second
	bad.MaxDelay = time.Second
	assert.Error(t, bad.Validate())

	bad = base
	bad.MinDelay = -time.Second
	assert.Error(t, bad.Validate())

	bad = base
	bad.Tone = "sarcastic"
	assert.Error(t, bad.Validate())

	bad = base
	bad.MaxRetries = -1
	assert.Error(t, bad.Validate())

	assert.NoError(t, base.Validate())
}
