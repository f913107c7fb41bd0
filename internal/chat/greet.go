package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kalambet/paris/internal/profile"
	"github.com/kalambet/paris/internal/prompt"
)

var welcomes = map[profile.Language]string{
	profile.French:  "Bienvenue sur notre plateforme ! Nous sommes ravis de vous accueillir. 😊",
	profile.English: "Welcome to our platform! We're delighted to have you here. 😊",
}

// Welcome returns the canned welcome message for lang.
func Welcome(lang profile.Language) string {
	if w, ok := welcomes[lang]; ok {
		return w
	}
	return welcomes[profile.French]
}

// Greet asks the model for a short welcome message in lang. Concurrent calls
// for the same language share one model request, which is detached from any
// single caller's cancellation. A caller whose ctx ends first gets the canned
// welcome.
func (s *Service) Greet(ctx context.Context, lang profile.Language) string {
	if _, ok := welcomes[lang]; !ok {
		lang = profile.French
	}
	shared := context.WithoutCancel(ctx)
	ch := s.greetings.DoChan(string(lang), func() (any, error) {
		out, err := s.gen.Generate(shared, prompt.Greeting(lang), nil)
		if err != nil {
			slog.Warn("chat: greeting generation failed, using canned welcome", "language", lang, "error", err)
			return Welcome(lang), nil
		}
		out = strings.Trim(strings.TrimSpace(out), `"`)
		if out == "" {
			return Welcome(lang), nil
		}
		return out, nil
	})
	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		return Welcome(lang)
	}
}
