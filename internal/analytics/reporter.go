// Package analytics aggregates ledger history into operator-facing
// statistics. It is a read-only downstream consumer of the ledger.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"sengage/internal/ledger"
	"sengage/internal/platform"
)

// Store is the read contract analytics needs from the ledger.
type Store interface {
	Query(since time.Time) ([]ledger.Entry, error)
	Recent(limit int) ([]ledger.Entry, error)
}

// DailyStat summarizes one day bucket.
type DailyStat struct {
	Day       string
	Succeeded int
	Failed    int
}

// Summary is the aggregate view rendered by the stats command.
type Summary struct {
	Today      int
	ThisWeek   int
	ByPlatform map[platform.Platform]StatusCounts
	BySource   map[string]int // successful comments by provenance (llm/template)
	Daily      []DailyStat    // most recent day first
}

// StatusCounts breaks attempts down by terminal status.
type StatusCounts struct {
	Total     int
	Succeeded int
	Transient int
	Permanent int
}

// Reporter computes summaries over the ledger.
type Reporter struct {
	store Store
	now   func() time.Time
}

// NewReporter creates a reporter over the given store.
func NewReporter(store Store) *Reporter {
	return &Reporter{store: store, now: time.Now}
}

// Summarize aggregates the last `days` days of history.
func (r *Reporter) Summarize(days int) (*Summary, error) {
	if days <= 0 {
		days = 7
	}
	now := r.now()
	since := now.AddDate(0, 0, -days)

	entries, err := r.store.Query(since)
	if err != nil {
		return nil, fmt.Errorf("failed to load engagement history: %w", err)
	}

	today := now.Format(ledger.DayBucketFormat)
	weekCutoff := now.AddDate(0, 0, -7)

	s := &Summary{
		ByPlatform: map[platform.Platform]StatusCounts{},
		BySource:   map[string]int{},
	}
	daily := map[string]*DailyStat{}

	for _, e := range entries {
		if e.DayBucket == today {
			s.Today++
		}
		if e.CreatedAt.After(weekCutoff) {
			s.ThisWeek++
		}

		counts := s.ByPlatform[e.Platform]
		counts.Total++
		switch e.Status {
		case platform.StatusSuccess:
			counts.Succeeded++
		case platform.StatusTransientFailure:
			counts.Transient++
		case platform.StatusPermanentFailure:
			counts.Permanent++
		}
		s.ByPlatform[e.Platform] = counts

		if e.Status == platform.StatusSuccess {
			s.BySource[e.Source]++
		}

		d, ok := daily[e.DayBucket]
		if !ok {
			d = &DailyStat{Day: e.DayBucket}
			daily[e.DayBucket] = d
		}
		if e.Status == platform.StatusSuccess {
			d.Succeeded++
		} else {
			d.Failed++
		}
	}

	for _, d := range daily {
		s.Daily = append(s.Daily, *d)
	}
	// Most recent day first; buckets are lexically ordered dates.
	sort.Slice(s.Daily, func(i, j int) bool {
		return s.Daily[i].Day > s.Daily[j].Day
	})

	return s, nil
}

// SuccessRate returns the percentage of successful attempts over the last
// `days` days, or 0 when there is no history.
func (r *Reporter) SuccessRate(days int) (float64, error) {
	entries, err := r.store.Query(r.now().AddDate(0, 0, -days))
	if err != nil {
		return 0, fmt.Errorf("failed to load engagement history: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var ok int
	for _, e := range entries {
		if e.Status == platform.StatusSuccess {
			ok++
		}
	}
	return float64(ok) / float64(len(entries)) * 100, nil
}

// RecentEntries returns the newest entries for display.
func (r *Reporter) RecentEntries(limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.store.Recent(limit)
}
