// Package compose produces comment text for discovered candidates.
//
// The composer tries the configured LLM client first and falls back to a
// deterministic template when no client is configured or the call fails.
// Compose never fails outward: for any candidate and tone it returns a
// non-empty draft, so the system stays usable with zero LLM credentials.
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"sengage/internal/platform"
)

// Client is the minimal LLM interface the composer calls.
// Mirrors the provider clients in internal/llm without importing them.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Source records where a draft's text came from.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceTemplate Source = "template"
)

// Draft is a composed comment. Text is always non-empty; platform length
// limits are the adapter's concern, not the composer's.
type Draft struct {
	Text   string
	Source Source
}

// Composer generates comment drafts.
type Composer struct {
	client Client // nil means template-only mode
	logger *zap.Logger
}

// New creates a composer. A nil client disables the LLM path entirely.
func New(client Client, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{client: client, logger: logger}
}

// Compose produces a draft for the candidate in the requested tone.
// LLM failures of any kind (transport, auth, malformed response) are
// recovered locally by the template path and never reach the caller.
func (c *Composer) Compose(ctx context.Context, cand platform.Candidate, tone Tone) Draft {
	if c.client != nil {
		if text, ok := c.tryLLM(ctx, cand, tone); ok {
			return Draft{Text: text, Source: SourceLLM}
		}
	}
	return Draft{Text: c.fromTemplate(cand, tone), Source: SourceTemplate}
}

func (c *Composer) tryLLM(ctx context.Context, cand platform.Candidate, tone Tone) (string, bool) {
	prompt := buildPrompt(cand, tone)

	raw, err := c.client.Generate(ctx, prompt)
	if err != nil {
		c.logger.Warn("llm generation failed, falling back to template",
			zap.String("candidate", cand.ID),
			zap.Error(err))
		return "", false
	}

	options := parseComments(raw)
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt != "" {
			return opt, true
		}
	}

	c.logger.Warn("llm returned no usable comments, falling back to template",
		zap.String("candidate", cand.ID))
	return "", false
}

// buildPrompt asks for several comment options so a malformed leading entry
// does not waste the whole response.
func buildPrompt(cand platform.Candidate, tone Tone) string {
	var b strings.Builder
	b.WriteString("You are a social media engagement specialist. ")
	b.WriteString("Generate 3-5 genuine, contextual comments for the following post.\n\n")

	fmt.Fprintf(&b, "Post details:\n- Platform: %s\n- Author: %s\n- Content: %s\n", cand.Platform, cand.Author, cand.Caption)
	if len(cand.Hashtags) > 0 {
		fmt.Fprintf(&b, "- Hashtags: %s\n", strings.Join(cand.Hashtags, ", "))
	}
	if cand.Location != "" {
		fmt.Fprintf(&b, "- Location: %s\n", cand.Location)
	}
	if cand.Likes > 0 {
		fmt.Fprintf(&b, "- Likes: %d\n", cand.Likes)
	}

	fmt.Fprintf(&b, `
Requirements:
- Tone: %s
- Length: 1-3 sentences max
- Genuine and conversational
- NO generic spam like "great post!" or bare emoji strings
- Ask a question to start conversation
- Show you actually read the post

Return ONLY a JSON array of strings, nothing else. Example:
["Comment 1", "Comment 2", "Comment 3"]
`, tone)

	return b.String()
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// parseComments extracts comment options from an LLM response. It looks for
// a JSON array first, then falls back to splitting non-trivial lines.
func parseComments(raw string) []string {
	if match := jsonArrayRe.FindString(raw); match != "" {
		var comments []string
		if err := json.Unmarshal([]byte(match), &comments); err == nil {
			return comments
		}
	}

	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 10 {
			out = append(out, line)
		}
	}
	return out
}

// toneTemplates holds the zero-dependency fallback comments per tone.
// {interest} is filled from the candidate's first hashtag.
var toneTemplates = map[Tone][]string{
	ToneFriendly: {
		"Love this! What got you into {interest}?",
		"This is exactly what I've been looking for, any tips for beginners?",
		"The {interest} community is so supportive, great to see posts like this!",
		"This is inspiring! How long have you been at it?",
	},
	ToneProfessional: {
		"Impressive work. What approach did you take with {interest}?",
		"Great insight into {interest}. Curious what resources you'd recommend.",
		"Well executed. Do you have a write-up on your process?",
	},
	ToneCasual: {
		"Okay this is awesome. Where is this?",
		"Been meaning to try {interest}, this might be the push I needed.",
		"That looks like such a good time, any pointers?",
	},
	ToneHumorous: {
		"Meanwhile I can barely manage {interest} on a good day. Respect!",
		"Instructions unclear, now I want to drop everything and do {interest}.",
		"This is the sign I was waiting for. See you at {interest} practice.",
	},
}

// fromTemplate builds a deterministic fallback comment: the same candidate
// always maps to the same template for a given tone.
func (c *Composer) fromTemplate(cand platform.Candidate, tone Tone) string {
	templates, ok := toneTemplates[tone]
	if !ok {
		templates = toneTemplates[ToneFriendly]
	}

	interest := "this"
	if len(cand.Hashtags) > 0 && cand.Hashtags[0] != "" {
		interest = strings.TrimPrefix(cand.Hashtags[0], "#")
	}

	h := fnv.New32a()
	h.Write([]byte(cand.ID))
	tmpl := templates[h.Sum32()%uint32(len(templates))]

	return strings.ReplaceAll(tmpl, "{interest}", interest)
}
