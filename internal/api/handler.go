package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/paris/internal/chat"
	"github.com/kalambet/paris/internal/profile"
	"github.com/kalambet/paris/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ChatService runs turns and greetings.
type ChatService interface {
	Turn(ctx context.Context, req chat.Request) (chat.Response, error)
	Greet(ctx context.Context, lang profile.Language) string
}

// NewHandler returns the HTTP API. store may be nil when sessions are not
// kept server-side; the /sessions routes then answer 501.
func NewHandler(svc ChatService, store session.Store, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", handleHealth)
	r.Post("/chat", handleChat(svc))
	r.Get("/greetings", handleGreetings(svc))
	r.Get("/sessions", handleListSessions(store))
	r.Get("/sessions/{role}", handleGetSession(store))

	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// chatRequest is the /chat body. Trajectory, history and language are the
// prior state a stateless client sends back.
type chatRequest struct {
	Message    string           `json:"message"`
	Role       string           `json:"role"`
	SessionID  string           `json:"session_id,omitempty"`
	Trajectory profile.FieldSet `json:"trajectory,omitempty"`
	History    []profile.Turn   `json:"history,omitempty"`
	Language   string           `json:"language,omitempty"`
}

type chatResponse struct {
	Response   string           `json:"response"`
	Trajectory profile.FieldSet `json:"trajectory"`
	Language   profile.Language `json:"language"`
	SessionID  string           `json:"session_id"`
	History    []profile.Turn   `json:"history,omitempty"`
}

func handleChat(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rejectChat(w, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resp, err := svc.Turn(r.Context(), chat.Request{
			Message:    req.Message,
			Role:       req.Role,
			SessionID:  req.SessionID,
			Trajectory: req.Trajectory,
			History:    req.History,
			Language:   req.Language,
		})
		if errors.Is(err, chat.ErrInvalidInput) {
			rejectChat(w, err.Error())
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "turn failed: %v", err)
			return
		}

		fields := resp.Fields
		if fields == nil {
			fields = profile.FieldSet{}
		}
		writeJSON(w, http.StatusOK, chatResponse{
			Response:   resp.Reply,
			Trajectory: fields,
			Language:   resp.Language,
			SessionID:  resp.SessionID,
			History:    resp.History,
		})
	}
}

func handleGreetings(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lang := profile.French
		if raw := r.URL.Query().Get("lang"); raw != "" {
			l, ok := profile.ParseLanguage(raw)
			if !ok {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unsupported language %q", raw)
				return
			}
			lang = l
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": svc.Greet(r.Context(), lang)})
	}
}

type sessionView struct {
	SessionID string           `json:"session_id"`
	Role      profile.Role     `json:"role"`
	Language  profile.Language `json:"language"`
	Data      profile.FieldSet `json:"data"`
	History   []profile.Turn   `json:"conversation_history"`
	Missing   []string         `json:"missing"`
	Complete  bool             `json:"complete"`
	Summary   string           `json:"summary"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func newSessionView(key session.Key, s profile.Session) sessionView {
	data := s.Fields
	if data == nil {
		data = profile.FieldSet{}
	}
	history := s.History
	if history == nil {
		history = []profile.Turn{}
	}
	missing := profile.Missing(key.Role, s.Fields)
	if missing == nil {
		missing = []string{}
	}
	return sessionView{
		SessionID: key.ID,
		Role:      key.Role,
		Language:  s.Language,
		Data:      data,
		History:   history,
		Missing:   missing,
		Complete:  profile.Complete(s),
		Summary:   profile.Summarize(s),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type sessionListItem struct {
	SessionID   string           `json:"session_id"`
	Role        profile.Role     `json:"role"`
	Language    profile.Language `json:"language"`
	FieldsKnown int              `json:"fields_known"`
	FieldsTotal int              `json:"fields_total"`
	Turns       int              `json:"turns"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func handleListSessions(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			httpError(w, http.StatusNotImplemented, "not_supported", "sessions are not stored in stateless mode")
			return
		}
		recs, err := store.List(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing sessions: %v", err)
			return
		}
		items := make([]sessionListItem, 0, len(recs))
		for _, rec := range recs {
			items = append(items, sessionListItem{
				SessionID:   rec.Key.ID,
				Role:        rec.Key.Role,
				Language:    rec.Session.Language,
				FieldsKnown: rec.Session.Fields.Known(),
				FieldsTotal: len(profile.RequiredFields(rec.Key.Role)),
				Turns:       len(rec.Session.History),
				UpdatedAt:   rec.Session.UpdatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": items})
	}
}

func handleGetSession(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			httpError(w, http.StatusNotImplemented, "not_supported", "sessions are not stored in stateless mode")
			return
		}
		role, err := profile.ParseRole(chi.URLParam(r, "role"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		key := session.NewKey(r.URL.Query().Get("session_id"), role)

		s, err := store.Get(r.Context(), key)
		if errors.Is(err, session.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no session for %s", key)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading session: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(key, s))
	}
}

// rejectChat writes the flat {"error": "..."} body browser clients of /chat
// expect.
func rejectChat(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Warn("writing response body failed", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
