package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/kalambet/paris/internal/engine"
	"github.com/kalambet/paris/internal/extract"
	"github.com/kalambet/paris/internal/language"
	"github.com/kalambet/paris/internal/profile"
	"github.com/kalambet/paris/internal/prompt"
	"github.com/kalambet/paris/internal/session"
)

// ErrInvalidInput is returned for requests rejected before any model call.
var ErrInvalidInput = errors.New("invalid input")

// Mode selects where session state lives between turns.
type Mode string

const (
	// ModeServer loads and saves sessions through the configured store.
	ModeServer Mode = "server"
	// ModeStateless takes prior state from the request and returns the
	// updated state without touching the store.
	ModeStateless Mode = "stateless"
)

// ParseMode resolves a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeServer:
		return ModeServer, nil
	case ModeStateless:
		return ModeStateless, nil
	}
	return "", fmt.Errorf("unknown session mode %q", s)
}

// Generator produces raw model text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, format *engine.Schema) (string, error)
}

// Request is one incoming user message.
type Request struct {
	Message   string
	Role      string
	SessionID string

	// Prior state, read only in stateless mode.
	Trajectory profile.FieldSet
	History    []profile.Turn
	Language   string
}

// Response is the outcome of one turn.
type Response struct {
	Reply     string
	Fields    profile.FieldSet
	Language  profile.Language
	SessionID string
	// History is set in stateless mode so the caller can send it back.
	History  []profile.Turn
	Fallback bool
}

// Service runs conversation turns and greetings.
type Service struct {
	gen    Generator
	store  session.Store
	pinner *language.Pinner
	locker *session.Locker
	mode   Mode
	now    func() time.Time

	greetings singleflight.Group
}

// NewService wires a Service. store may be nil in stateless mode.
func NewService(gen Generator, store session.Store, pinner *language.Pinner, mode Mode) *Service {
	if mode == "" {
		mode = ModeServer
	}
	return &Service{
		gen:    gen,
		store:  store,
		pinner: pinner,
		locker: session.NewLocker(),
		mode:   mode,
		now:    time.Now,
	}
}

// Mode returns the configured session mode.
func (s *Service) Mode() Mode { return s.mode }

// Store returns the backing session store, nil in stateless mode.
func (s *Service) Store() session.Store { return s.store }

// Turn processes one user message:
//  1. Validate role and message (the only failure path)
//  2. Serialize on the session key and resolve the session
//  3. Append the user turn and build the prompt
//  4. Generate, parse and merge the extracted fields
//  5. Append the reply and persist
//
// Model or parse failures produce the fallback reply with fields unchanged.
func (s *Service) Turn(ctx context.Context, req Request) (Response, error) {
	role, err := profile.ParseRole(req.Role)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return Response{}, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}
	key := session.NewKey(req.SessionID, role)

	var sess profile.Session
	persist := s.mode == ModeServer
	if s.mode == ModeStateless {
		sess = s.fromRequest(key, req, msg)
	} else {
		unlock := s.locker.Lock(key)
		defer unlock()
		sess, persist = s.load(ctx, key, msg)
	}

	sess.Append(profile.SpeakerUser, msg)

	p := prompt.Build(prompt.Input{
		Role:     role,
		Language: sess.Language,
		Known:    sess.Fields,
		History:  sess.History,
		Message:  msg,
	})

	var ext extract.Extraction
	raw, err := s.gen.Generate(ctx, p, prompt.ResponseSchema())
	if err != nil {
		slog.Warn("chat: model call failed, using fallback", "key", key.String(), "error", err)
		ext = extract.Fallback(sess.Fields, sess.Language)
	} else {
		ext = extract.Parse(raw, sess.Fields, sess.Language)
	}

	if !ext.Fallback {
		kept, dropped := profile.Restrict(role, ext.Fields)
		if len(dropped) > 0 {
			slog.Debug("chat: dropped fields outside role schema", "key", key.String(), "fields", dropped)
		}
		sess.Fields = profile.Merge(sess.Fields, kept)
	}

	sess.Append(profile.SpeakerBot, ext.Reply)
	sess.UpdatedAt = s.now()

	if persist {
		// Saved even when the caller has already gone away.
		if err := s.store.Upsert(context.WithoutCancel(ctx), key, sess); err != nil {
			slog.Error("chat: failed to persist session", "key", key.String(), "error", err)
		}
	} else if s.mode == ModeServer {
		slog.Warn("chat: session load failed, turn not persisted", "key", key.String())
	}

	slog.Debug("chat: turn complete",
		"key", key.String(),
		"language", sess.Language,
		"fields_known", sess.Fields.Known(),
		"turns", len(sess.History),
		"fallback", ext.Fallback,
	)

	resp := Response{
		Reply:     ext.Reply,
		Fields:    sess.Fields.Clone(),
		Language:  sess.Language,
		SessionID: key.ID,
		Fallback:  ext.Fallback,
	}
	if s.mode == ModeStateless {
		resp.History = sess.History
	}
	return resp, nil
}

// Session returns the stored state for key.
func (s *Service) Session(ctx context.Context, key session.Key) (profile.Session, error) {
	if s.store == nil {
		return profile.Session{}, session.ErrNotFound
	}
	return s.store.Get(ctx, key)
}

// load returns the stored session or a fresh one pinned to the language of
// msg. Load failures other than absence are logged and served from a fresh
// session; the returned bool is false then, since saving that session would
// overwrite the stored one.
func (s *Service) load(ctx context.Context, key session.Key, msg string) (profile.Session, bool) {
	sess, err := s.store.Get(ctx, key)
	if err == nil {
		if sess.Fields == nil {
			sess.Fields = profile.FieldSet{}
		}
		return sess, true
	}
	fresh := s.newSession(key.Role, s.pinner.Decide(msg))
	if !errors.Is(err, session.ErrNotFound) {
		slog.Error("chat: failed to load session, starting fresh", "key", key.String(), "error", err)
		return fresh, false
	}
	return fresh, true
}

// fromRequest rebuilds the session from caller-supplied state.
func (s *Service) fromRequest(key session.Key, req Request, msg string) profile.Session {
	lang, ok := profile.ParseLanguage(req.Language)
	if !ok {
		lang = s.pinner.Decide(firstUserMessage(req.History, msg))
	}
	sess := s.newSession(key.Role, lang)
	kept, dropped := profile.Restrict(key.Role, req.Trajectory)
	if len(dropped) > 0 {
		slog.Debug("chat: ignored trajectory fields outside role schema", "key", key.String(), "fields", dropped)
	}
	sess.Fields = profile.Merge(sess.Fields, kept)
	if len(req.History) > 0 {
		sess.History = make([]profile.Turn, len(req.History))
		copy(sess.History, req.History)
	}
	return sess
}

func (s *Service) newSession(role profile.Role, lang profile.Language) profile.Session {
	now := s.now()
	return profile.Session{
		ID:        uuid.New().String(),
		Role:      role,
		Language:  lang,
		Fields:    profile.FieldSet{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func firstUserMessage(history []profile.Turn, fallback string) string {
	for _, t := range history {
		if t.Speaker == profile.SpeakerUser && strings.TrimSpace(t.Content) != "" {
			return t.Content
		}
	}
	return fallback
}
