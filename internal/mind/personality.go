package mind

import (
	"fmt"
	"strings"
)

// Style is the conversational register of the assistant.
type Style int

const (
	StyleFriendly Style = iota
	StyleProfessional
	StylePlayful
	StyleWitty
	StyleShy
)

var styleNames = map[Style]string{
	StyleFriendly:     "friendly",
	StyleProfessional: "professional",
	StylePlayful:      "playful",
	StyleWitty:        "witty",
	StyleShy:          "shy",
}

func (s Style) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

func (s Style) MarshalText() ([]byte, error) {
	if _, ok := styleNames[s]; !ok {
		return nil, fmt.Errorf("unknown style %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Style) UnmarshalText(b []byte) error {
	v, err := ParseStyle(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStyle accepts the lowercase style names.
func ParseStyle(name string) (Style, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range styleNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown style %q", name)
}

// ResponseLength is how long the assistant should answer.
type ResponseLength int

const (
	LengthMedium ResponseLength = iota
	LengthShort
	LengthDetailed
)

var lengthNames = map[ResponseLength]string{
	LengthShort:    "short",
	LengthMedium:   "medium",
	LengthDetailed: "detailed",
}

func (l ResponseLength) String() string {
	if name, ok := lengthNames[l]; ok {
		return name
	}
	return fmt.Sprintf("ResponseLength(%d)", int(l))
}

func (l ResponseLength) MarshalText() ([]byte, error) {
	if _, ok := lengthNames[l]; !ok {
		return nil, fmt.Errorf("unknown response length %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *ResponseLength) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for v, n := range lengthNames {
		if n == name {
			*l = v
			return nil
		}
	}
	return fmt.Errorf("unknown response length %q", name)
}

// Personality shapes the system instruction and the confidence baseline.
type Personality struct {
	SystemPrompt       string         `json:"prompt"`
	Style              Style          `json:"style"`
	UsesEmoji          bool           `json:"useEmojis"`
	RememberContext    bool           `json:"rememberContext"`
	Proactive          bool           `json:"proactive"`
	ResponseLength     ResponseLength `json:"responseLength"`
	ConfidenceBaseline float64        `json:"confidenceBaseline"`
}

// DefaultPersonality is Katu: shy, kind, clumsy and eager to help.
func DefaultPersonality() Personality {
	return Personality{
		SystemPrompt:       "Eres Katu, alguien que siempre trata de ayudar, algo tímido, amable, torpe, divertido y curioso.",
		Style:              StyleShy,
		UsesEmoji:          true,
		RememberContext:    true,
		Proactive:          false,
		ResponseLength:     LengthMedium,
		ConfidenceBaseline: 0.7,
	}
}
