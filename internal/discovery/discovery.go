// Package discovery filters and ranks raw adapter results before the
// orchestrator sees them: exclusion lists, like-count bounds, and a simple
// engagement score that favors recent, relevant, visibly active posts.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"sengage/internal/platform"
)

// Scored pairs a candidate with its engagement score and the reason it
// was kept.
type Scored struct {
	Candidate platform.Candidate
	Score     float64
	Reason    string
}

// Engine evaluates adapter results against discovery criteria.
type Engine struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a discovery engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, now: time.Now}
}

// Discover runs the adapter's search and returns the filtered candidates
// ranked by score, truncated to the criteria limit.
func (e *Engine) Discover(ctx context.Context, adapter platform.Adapter, criteria platform.Criteria) ([]Scored, error) {
	raw, err := adapter.Discover(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("discovery failed for %s: %w", adapter.Platform(), err)
	}

	results := e.Evaluate(raw, criteria)

	e.logger.Info("discovery complete",
		zap.String("platform", string(adapter.Platform())),
		zap.Int("raw", len(raw)),
		zap.Int("kept", len(results)))

	return results, nil
}

// Evaluate filters and ranks candidates without touching the adapter.
func (e *Engine) Evaluate(raw []platform.Candidate, criteria platform.Criteria) []Scored {
	var results []Scored
	for _, cand := range raw {
		if !e.passes(cand, criteria) {
			continue
		}
		results = append(results, Scored{
			Candidate: cand,
			Score:     e.score(cand, criteria),
			Reason:    e.reason(cand, criteria),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if criteria.Limit > 0 && len(results) > criteria.Limit {
		results = results[:criteria.Limit]
	}
	return results
}

// Ranked wraps an adapter so Discover returns the engine's filtered,
// score-ranked candidates. The engage path consumes adapters through this
// wrapper, so the orchestrator engages the highest-scored posts first.
func Ranked(adapter platform.Adapter, engine *Engine) platform.Adapter {
	return &rankedAdapter{Adapter: adapter, engine: engine}
}

type rankedAdapter struct {
	platform.Adapter
	engine *Engine
}

func (r *rankedAdapter) Discover(ctx context.Context, criteria platform.Criteria) ([]platform.Candidate, error) {
	scored, err := r.engine.Discover(ctx, r.Adapter, criteria)
	if err != nil {
		return nil, err
	}
	out := make([]platform.Candidate, len(scored))
	for i, s := range scored {
		out[i] = s.Candidate
	}
	return out, nil
}

func (e *Engine) passes(cand platform.Candidate, criteria platform.Criteria) bool {
	for _, u := range criteria.ExcludeUsers {
		if strings.EqualFold(cand.Author, u) {
			return false
		}
	}
	for _, h := range cand.Hashtags {
		for _, ex := range criteria.ExcludeHashtags {
			if strings.EqualFold(h, ex) {
				return false
			}
		}
	}
	if cand.Likes < criteria.MinLikes {
		return false
	}
	if criteria.MaxLikes > 0 && cand.Likes > criteria.MaxLikes {
		return false
	}
	if criteria.MaxAgeHours > 0 && !cand.PostedAt.IsZero() {
		age := e.now().Sub(cand.PostedAt)
		if age > time.Duration(criteria.MaxAgeHours)*time.Hour {
			return false
		}
	}
	return true
}

// score favors posts with visible engagement, recency, and hashtag/keyword
// relevance to the criteria.
func (e *Engine) score(cand platform.Candidate, criteria platform.Criteria) float64 {
	score := float64(cand.Likes) / 100
	if score > 10 {
		score = 10
	}

	if !cand.PostedAt.IsZero() {
		switch age := e.now().Sub(cand.PostedAt); {
		case age < time.Hour:
			score += 5
		case age < 6*time.Hour:
			score += 3
		case age < 24*time.Hour:
			score += 1
		}
	}

	for _, h := range cand.Hashtags {
		for _, want := range criteria.Hashtags {
			if strings.EqualFold(h, want) {
				score += 2
			}
		}
	}

	caption := strings.ToLower(cand.Caption)
	for _, kw := range criteria.Keywords {
		if kw != "" && strings.Contains(caption, strings.ToLower(kw)) {
			score += 3
		}
	}

	return score
}

func (e *Engine) reason(cand platform.Candidate, criteria platform.Criteria) string {
	var reasons []string

	var matching []string
	for _, h := range cand.Hashtags {
		for _, want := range criteria.Hashtags {
			if strings.EqualFold(h, want) {
				matching = append(matching, h)
			}
		}
	}
	if len(matching) > 0 {
		reasons = append(reasons, "matching hashtags: "+strings.Join(matching, ", "))
	}

	if cand.Likes > 100 {
		reasons = append(reasons, fmt.Sprintf("good engagement: %d likes", cand.Likes))
	}

	if !cand.PostedAt.IsZero() && e.now().Sub(cand.PostedAt) < 6*time.Hour {
		reasons = append(reasons, "recent post")
	}

	if len(reasons) == 0 {
		return "matches criteria"
	}
	return strings.Join(reasons, "; ")
}
