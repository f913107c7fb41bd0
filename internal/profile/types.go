package profile

import (
	"fmt"
	"strings"
	"time"
)

// Role is the user's declared category. It gates which fields are collected.
type Role string

const (
	Professional Role = "professional"
	Researcher   Role = "researcher"
)

// roleAliases maps the short tags used by the web client onto roles.
var roleAliases = map[string]Role{
	"professional": Professional,
	"pro":          Professional,
	"researcher":   Researcher,
	"chercheur":    Researcher,
}

// ParseRole resolves a role tag (case-insensitive, aliases allowed).
func ParseRole(s string) (Role, error) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Roles returns every known role in a stable order.
func Roles() []Role {
	return []Role{Professional, Researcher}
}

// Language is the language a session replies in.
type Language string

const (
	French  Language = "fr"
	English Language = "en"
)

// ParseLanguage resolves a language tag. Empty input yields ok=false.
func ParseLanguage(s string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case French:
		return French, true
	case English:
		return English, true
	}
	return "", false
}

// Name returns the language name as written in prompts.
func (l Language) Name() string {
	if l == French {
		return "français"
	}
	return "English"
}

// FieldSet maps a field name to its collected value. An absent key means
// the field is not known yet.
type FieldSet map[string]string

// Clone returns an independent copy. A nil set clones to an empty set.
func (f FieldSet) Clone() FieldSet {
	out := make(FieldSet, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Known returns the number of fields holding a non-empty value.
func (f FieldSet) Known() int {
	n := 0
	for _, v := range f {
		if !isEmpty(v) {
			n++
		}
	}
	return n
}

// Speaker identifies the author of a conversation turn.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Turn is one message of the conversation history. The JSON shape
// ({"role", "content"}) is the one replayed into prompts and persisted.
type Turn struct {
	Speaker Speaker `json:"role"`
	Content string  `json:"content"`
}

// Session aggregates everything collected for one session key.
type Session struct {
	ID        string
	Role      Role
	Language  Language
	Fields    FieldSet
	History   []Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Append adds a turn at the end of the history.
func (s *Session) Append(speaker Speaker, content string) {
	s.History = append(s.History, Turn{Speaker: speaker, Content: content})
}

// Clone deep-copies the session so callers never share mutable state
// with a store.
func (s Session) Clone() Session {
	cp := s
	cp.Fields = s.Fields.Clone()
	if s.History != nil {
		cp.History = make([]Turn, len(s.History))
		copy(cp.History, s.History)
	}
	return cp
}
