package compose

import "fmt"

// Tone selects the register comments are written in.
type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneHumorous     Tone = "humorous"
)

// Tones lists every recognized tone.
var Tones = []Tone{ToneFriendly, ToneProfessional, ToneCasual, ToneHumorous}

// ParseTone validates a tone string. Unknown tones are a configuration
// error surfaced at startup, never per candidate.
func ParseTone(s string) (Tone, error) {
	for _, t := range Tones {
		if Tone(s) == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid tone: %q (valid: %v)", s, Tones)
}
