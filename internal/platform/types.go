// Package platform defines the platform-agnostic domain types and the
// Adapter interface every social platform implementation must satisfy.
package platform

import "time"

// Platform identifies a supported social network.
type Platform string

const (
	Instagram Platform = "instagram"
	Twitter   Platform = "twitter"
	TikTok    Platform = "tiktok"
	LinkedIn  Platform = "linkedin"
)

// Known lists the platforms an adapter may register under.
var Known = []Platform{Instagram, Twitter, TikTok, LinkedIn}

// Valid reports whether p is one of the known platforms.
func (p Platform) Valid() bool {
	for _, k := range Known {
		if p == k {
			return true
		}
	}
	return false
}

// Candidate is a discovered post eligible for engagement.
// (Platform, ID) uniquely identifies a candidate; the ledger keys on the pair.
type Candidate struct {
	ID           string    `json:"id"`
	Platform     Platform  `json:"platform"`
	URL          string    `json:"url,omitempty"`
	Author       string    `json:"author"`
	AuthorID     string    `json:"author_id,omitempty"`
	Caption      string    `json:"caption"`
	MediaURLs    []string  `json:"media_urls,omitempty"`
	Location     string    `json:"location,omitempty"`
	Hashtags     []string  `json:"hashtags,omitempty"`
	Likes        int       `json:"likes"`
	CommentCount int       `json:"comment_count"`
	PostedAt     time.Time `json:"posted_at,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// ActionStatus classifies the terminal outcome of a post attempt.
type ActionStatus string

const (
	StatusSuccess          ActionStatus = "success"
	StatusTransientFailure ActionStatus = "transient_failure"
	StatusPermanentFailure ActionStatus = "permanent_failure"
)

// ActionResult is the outcome of a post attempt. Adapters always resolve to
// a terminal ActionResult; connectivity failures are reported through Status,
// never as errors crossing the orchestrator boundary.
type ActionResult struct {
	Status      ActionStatus `json:"status"`
	ErrorDetail string       `json:"error_detail,omitempty"`
	PostedAt    time.Time    `json:"posted_at,omitempty"` // set only on success
}

// OK reports whether the action succeeded.
func (r ActionResult) OK() bool { return r.Status == StatusSuccess }

// Success builds a successful ActionResult stamped with the current time.
func Success() ActionResult {
	return ActionResult{Status: StatusSuccess, PostedAt: time.Now()}
}

// Transient builds a transient failure result.
func Transient(detail string) ActionResult {
	return ActionResult{Status: StatusTransientFailure, ErrorDetail: detail}
}

// Permanent builds a permanent failure result.
func Permanent(detail string) ActionResult {
	return ActionResult{Status: StatusPermanentFailure, ErrorDetail: detail}
}

// Criteria describes what Discover should look for.
type Criteria struct {
	Hashtags        []string `json:"hashtags,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Location        string   `json:"location,omitempty"`
	Limit           int      `json:"limit"`
	MinLikes        int      `json:"min_likes,omitempty"`
	MaxLikes        int      `json:"max_likes,omitempty"`
	MaxAgeHours     int      `json:"max_age_hours,omitempty"`
	ExcludeUsers    []string `json:"exclude_users,omitempty"`
	ExcludeHashtags []string `json:"exclude_hashtags,omitempty"`
}

// Credentials carries the login identity for an adapter.
type Credentials struct {
	Username string
	Password string
}
