package compose

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sengage/internal/platform"
)

type scriptedClient struct {
	response string
	err      error
	calls    int
}

func (s *scriptedClient) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.response, s.err
}

func testCandidate() platform.Candidate {
	return platform.Candidate{
		ID:       "abc123",
		Platform: platform.Instagram,
		Author:   "climber_jane",
		Caption:  "Sunrise session at the crag",
		Hashtags: []string{"climbing", "outdoors"},
	}
}

func TestComposeTotalAvailability(t *testing.T) {
	// compose always returns a non-empty draft, even when the LLM client
	// errors on every call, for every tone.
	failing := &scriptedClient{err: errors.New("connection refused")}
	c := New(failing, nil)

	for _, tone := range Tones {
		draft := c.Compose(context.Background(), testCandidate(), tone)
		assert.NotEmpty(t, draft.Text, "tone %s", tone)
		assert.Equal(t, SourceTemplate, draft.Source, "tone %s", tone)
	}
	assert.Equal(t, len(Tones), failing.calls)
}

func TestComposeWithoutClientUsesTemplates(t *testing.T) {
	// No provider configured means every draft is a template.
	c := New(nil, nil)

	draft := c.Compose(context.Background(), testCandidate(), ToneFriendly)
	assert.Equal(t, SourceTemplate, draft.Source)
	assert.NotEmpty(t, draft.Text)
}

func TestComposeUsesFirstLLMOption(t *testing.T) {
	client := &scriptedClient{response: `["First comment?", "Second comment?"]`}
	c := New(client, nil)

	draft := c.Compose(context.Background(), testCandidate(), ToneCasual)
	assert.Equal(t, SourceLLM, draft.Source)
	assert.Equal(t, "First comment?", draft.Text)
}

func TestComposeExtractsEmbeddedJSONArray(t *testing.T) {
	client := &scriptedClient{response: "Sure! Here are some options:\n[\"Great route, which grade is it?\"]\nHope that helps."}
	c := New(client, nil)

	draft := c.Compose(context.Background(), testCandidate(), ToneFriendly)
	assert.Equal(t, SourceLLM, draft.Source)
	assert.Equal(t, "Great route, which grade is it?", draft.Text)
}

func TestComposeNewlineFallbackParsing(t *testing.T) {
	client := &scriptedClient{response: "This looks like an amazing spot, where is it?\nok\nHow long have you been climbing there?"}
	c := New(client, nil)

	draft := c.Compose(context.Background(), testCandidate(), ToneFriendly)
	assert.Equal(t, SourceLLM, draft.Source)
	assert.Equal(t, "This looks like an amazing spot, where is it?", draft.Text)
}

func TestComposeEmptyLLMResponseFallsBack(t *testing.T) {
	client := &scriptedClient{response: "[]"}
	c := New(client, nil)

	draft := c.Compose(context.Background(), testCandidate(), ToneFriendly)
	assert.Equal(t, SourceTemplate, draft.Source)
	assert.NotEmpty(t, draft.Text)
}

func TestTemplateIsDeterministicPerCandidate(t *testing.T) {
	c := New(nil, nil)
	cand := testCandidate()

	first := c.Compose(context.Background(), cand, ToneHumorous)
	second := c.Compose(context.Background(), cand, ToneHumorous)
	assert.Equal(t, first.Text, second.Text)
}

func TestTemplatePickHandlesHighHashValues(t *testing.T) {
	// FNV-1a of "a" is 0xe40c292c, above MaxInt32: the template index must
	// stay in range on every platform.
	c := New(nil, nil)
	cand := testCandidate()
	cand.ID = "a"

	for _, tone := range Tones {
		draft := c.Compose(context.Background(), cand, tone)
		assert.NotEmpty(t, draft.Text, "tone %s", tone)
	}
}

func TestTemplateFillsInterestFromHashtag(t *testing.T) {
	c := New(nil, nil)

	// Walk candidate IDs until one maps to a template carrying the
	// placeholder, then check the substitution.
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		cand := testCandidate()
		cand.ID = id
		draft := c.Compose(context.Background(), cand, ToneFriendly)
		assert.NotContains(t, draft.Text, "{interest}")
	}
}

func TestParseComments(t *testing.T) {
	got := parseComments(`["one", "two"]`)
	assert.Equal(t, []string{"one", "two"}, got)

	got = parseComments("not json at all, but a long enough line")
	require.Len(t, got, 1)

	assert.Empty(t, parseComments("short"))
}

func TestParseTone(t *testing.T) {
	for _, s := range []string{"friendly", "professional", "casual", "humorous"} {
		tone, err := ParseTone(s)
		require.NoError(t, err)
		assert.Equal(t, Tone(s), tone)
	}

	_, err := ParseTone("sarcastic")
	assert.Error(t, err)
	_, err = ParseTone("")
	assert.Error(t, err)
}
