package language

import (
	"testing"

	"github.com/kalambet/paris/internal/profile"
)

type stubDetector struct {
	code  string
	ok    bool
	calls int
}

func (s *stubDetector) Detect(string) (string, bool) {
	s.calls++
	return s.code, s.ok
}

func TestDecide_MarkerWordWins(t *testing.T) {
	det := &stubDetector{code: "en", ok: true}
	p := NewPinnerWithDetector(det)

	if got := p.Decide("Bonjour, je suis développeur"); got != profile.French {
		t.Errorf("Decide() = %q, want fr", got)
	}
	if det.calls != 0 {
		t.Errorf("detector called %d times, want 0 when a marker matches", det.calls)
	}
}

func TestDecide_MarkerIsCaseInsensitiveSubstring(t *testing.T) {
	p := NewPinnerWithDetector(&stubDetector{code: "en", ok: true})
	if got := p.Decide("MERCI beaucoup"); got != profile.French {
		t.Errorf("Decide() = %q, want fr", got)
	}
}

func TestDecide_DetectorFrench(t *testing.T) {
	p := NewPinnerWithDetector(&stubDetector{code: "fr", ok: true})
	if got := p.Decide("je travaille dans la cybersécurité"); got != profile.French {
		t.Errorf("Decide() = %q, want fr", got)
	}
}

func TestDecide_OtherLanguageIsEnglish(t *testing.T) {
	p := NewPinnerWithDetector(&stubDetector{code: "de", ok: true})
	if got := p.Decide("Ich arbeite als Entwickler"); got != profile.English {
		t.Errorf("Decide() = %q, want en", got)
	}
}

func TestDecide_DetectionFailureIsEnglish(t *testing.T) {
	p := NewPinnerWithDetector(&stubDetector{ok: false})
	if got := p.Decide("???"); got != profile.English {
		t.Errorf("Decide() = %q, want en", got)
	}
}

func TestDecide_Whatlanggo(t *testing.T) {
	p := NewPinner()
	if got := p.Decide("I am a software engineer working on distributed systems and cloud infrastructure"); got != profile.English {
		t.Errorf("Decide(english) = %q, want en", got)
	}
	if got := p.Decide("Je suis ingénieur logiciel et je travaille sur des systèmes distribués depuis dix ans"); got != profile.French {
		t.Errorf("Decide(french) = %q, want fr", got)
	}
}
