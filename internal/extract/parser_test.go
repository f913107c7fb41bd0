package extract

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/paris/internal/profile"
)

func TestParse_Valid(t *testing.T) {
	raw := `{"data": {"domain": "développement web", "experience": "5 ans"}, "response": "Super ! Quel est ton parcours ?"}`
	got := Parse(raw, profile.FieldSet{"about": "x"}, profile.French)

	want := Extraction{
		Fields: profile.FieldSet{"domain": "développement web", "experience": "5 ans"},
		Reply:  "Super ! Quel est ton parcours ?",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_FallbackCases(t *testing.T) {
	known := profile.FieldSet{"domain": "devops"}
	cases := map[string]string{
		"plain text":         "Bonjour ! Je suis ravi de vous aider.",
		"empty":              "",
		"array":              `[{"response": "hi"}]`,
		"null":               "null",
		"missing response":   `{"data": {"domain": "boulangerie"}}`,
		"non-string reply":   `{"data": {}, "response": 42}`,
		"blank reply":        `{"data": {}, "response": "  "}`,
		"data not an object": `{"data": "domain=tech", "response": "ok"}`,
		"truncated":          `{"data": {"domain": "tech"}, "response": "Mer`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got := Parse(raw, known, profile.French)
			if !got.Fallback {
				t.Fatalf("Fallback = false for %q", raw)
			}
			if got.Reply != "Je n'ai pas bien compris, peux-tu reformuler ?" {
				t.Errorf("Reply = %q", got.Reply)
			}
			if diff := cmp.Diff(known, got.Fields); diff != "" {
				t.Errorf("fields changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_FallbackEnglish(t *testing.T) {
	got := Parse("oops", nil, profile.English)
	if got.Reply != "I didn't quite understand, could you rephrase?" {
		t.Errorf("Reply = %q", got.Reply)
	}
	if got.Fields == nil || len(got.Fields) != 0 {
		t.Errorf("Fields = %#v, want empty non-nil set", got.Fields)
	}
}

func TestParse_FallbackCopiesFields(t *testing.T) {
	known := profile.FieldSet{"domain": "devops"}
	got := Parse("nope", known, profile.French)
	got.Fields["domain"] = "changed"
	if known["domain"] != "devops" {
		t.Error("fallback shares the caller's field set")
	}
}

func TestDecode_MissingOrNullData(t *testing.T) {
	for _, raw := range []string{`{"response": "ok"}`, `{"data": null, "response": "ok"}`} {
		ex, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode(%s): %v", raw, err)
		}
		if len(ex.Fields) != 0 || ex.Reply != "ok" {
			t.Errorf("Decode(%s) = %+v", raw, ex)
		}
	}
}

func TestDecode_NonStringValues(t *testing.T) {
	ex, err := Decode(`{"data": {"experience": 12, "help": true, "about": null, "passions": ["escalade", "go"], "histoires": {"a": 1}}, "response": "ok"}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := profile.FieldSet{
		"experience": "12",
		"help":       "true",
		"about":      "",
		"passions":   `["escalade","go"]`,
		"histoires":  `{"a":1}`,
	}
	if diff := cmp.Diff(want, ex.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
}

func TestDecode_CodeFence(t *testing.T) {
	raw := "```json\n{\"data\": {\"domain\": \"IA\"}, \"response\": \"Cool\"}\n```"
	ex, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ex.Fields["domain"] != "IA" || ex.Reply != "Cool" {
		t.Errorf("Decode() = %+v", ex)
	}
}

func TestDecode_ErrMalformed(t *testing.T) {
	_, err := Decode("not json")
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestParse_PassesRedirectThrough(t *testing.T) {
	reply := "Merci ! Malheureusement, la plateforme est réservée aux métiers de la tech ; la boulangerie n'en fait pas partie."
	raw := `{"data": {"domain": "boulanger"}, "response": "` + reply + `"}`
	got := Parse(raw, nil, profile.French)
	if got.Fallback || got.Reply != reply {
		t.Errorf("redirect reply altered: %+v", got)
	}
}
