// Package extract turns raw model output into a validated Extraction.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/paris/internal/profile"
)

// Extraction is the result of one model call: the fields it found and the
// reply to show the user.
type Extraction struct {
	Fields   profile.FieldSet
	Reply    string
	Fallback bool
}

// ErrMalformed reports model output that cannot be trusted.
var ErrMalformed = errors.New("malformed model output")

var fallbackReplies = map[profile.Language]string{
	profile.French:  "Je n'ai pas bien compris, peux-tu reformuler ?",
	profile.English: "I didn't quite understand, could you rephrase?",
}

// FallbackReply returns the canned clarification message for lang.
func FallbackReply(lang profile.Language) string {
	if r, ok := fallbackReplies[lang]; ok {
		return r
	}
	return fallbackReplies[profile.English]
}

// Fallback is the extraction used whenever model output is unusable: the
// caller's fields unchanged and the clarification reply.
func Fallback(fields profile.FieldSet, lang profile.Language) Extraction {
	return Extraction{Fields: fields.Clone(), Reply: FallbackReply(lang), Fallback: true}
}

// Parse validates raw and returns its extraction. On any failure it logs
// the reason and returns Fallback(fallbackFields, lang); it never fails.
func Parse(raw string, fallbackFields profile.FieldSet, lang profile.Language) Extraction {
	ex, err := Decode(raw)
	if err != nil {
		slog.Warn("model output rejected, using fallback reply", "error", err, "response", raw)
		return Fallback(fallbackFields, lang)
	}
	return ex
}

// Decode parses raw strictly. Validation order: JSON object, "response"
// present, "response" a non-empty string. "data" may be absent or null.
func Decode(raw string) (Extraction, error) {
	body := stripFence(strings.TrimSpace(raw))

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return Extraction{}, fmt.Errorf("%w: not a JSON object: %v", ErrMalformed, err)
	}
	if obj == nil {
		return Extraction{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	rawReply, ok := obj["response"]
	if !ok {
		return Extraction{}, fmt.Errorf("%w: missing \"response\"", ErrMalformed)
	}
	var reply string
	if err := json.Unmarshal(rawReply, &reply); err != nil {
		return Extraction{}, fmt.Errorf("%w: \"response\" is not a string", ErrMalformed)
	}
	if strings.TrimSpace(reply) == "" {
		return Extraction{}, fmt.Errorf("%w: empty \"response\"", ErrMalformed)
	}

	fields, err := decodeFields(obj["data"])
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{Fields: fields, Reply: reply}, nil
}

// decodeFields flattens the "data" object into text values. Scalars keep
// their JSON text, null becomes empty, nested values become compact JSON.
func decodeFields(raw json.RawMessage) (profile.FieldSet, error) {
	fields := profile.FieldSet{}
	if len(raw) == 0 || string(raw) == "null" {
		return fields, nil
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: \"data\" is not an object", ErrMalformed)
	}
	for k, v := range data {
		fields[k] = fieldText(v)
	}
	return fields, nil
}

func fieldText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	trimmed := bytes.TrimSpace(v)
	if string(trimmed) == "null" {
		return ""
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed)
	}
	return compact.String()
}

// stripFence removes a surrounding Markdown code fence such as ```json.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}
