package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/kalambet/paris/internal/profile"
)

// frenchMarkers force French when found anywhere in the message,
// case-insensitively. Short greetings are too small for statistical
// detection to be reliable.
var frenchMarkers = []string{"bonjour", "salut", "merci", "oui", "non"}

// Detector guesses the language of a text. ok is false when no guess
// could be made.
type Detector interface {
	Detect(text string) (iso6391 string, ok bool)
}

// Pinner decides a session's language from its first message.
type Pinner struct {
	detector Detector
}

// NewPinner creates a Pinner backed by whatlanggo.
func NewPinner() *Pinner {
	return &Pinner{detector: whatlangDetector{}}
}

// NewPinnerWithDetector creates a Pinner with a custom detector (for testing).
func NewPinnerWithDetector(d Detector) *Pinner {
	return &Pinner{detector: d}
}

// Decide returns French when the message carries a French marker word or
// is detected as French, and English otherwise, including when detection
// fails.
func (p *Pinner) Decide(firstMessage string) profile.Language {
	lower := strings.ToLower(firstMessage)
	for _, m := range frenchMarkers {
		if strings.Contains(lower, m) {
			return profile.French
		}
	}

	code, ok := p.detector.Detect(firstMessage)
	if ok && code == "fr" {
		return profile.French
	}
	return profile.English
}

type whatlangDetector struct{}

func (whatlangDetector) Detect(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	info := whatlanggo.Detect(text)
	switch {
	case info.Lang < 0:
		return "", false
	case info.Lang == whatlanggo.Fra:
		return "fr", true
	case info.Lang == whatlanggo.Eng:
		return "en", true
	}
	return "und", true
}
