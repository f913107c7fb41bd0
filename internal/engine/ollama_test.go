package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEngine_Chat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "hello from ollama"},
		})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, 0.3)
	result, err := e.Chat(context.Background(), "mistral", []Message{{Role: "user", Content: "hi"}}, &Schema{
		Type:       "object",
		Properties: map[string]SchemaProperty{"response": {Type: "string"}},
		Required:   []string{"response"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result != "hello from ollama" {
		t.Errorf("got %q, want %q", result, "hello from ollama")
	}

	format, ok := body["format"].(map[string]any)
	if !ok {
		t.Fatalf("format = %#v, want object", body["format"])
	}
	if _, ok := format["properties"].(map[string]any)["response"]; !ok {
		t.Errorf("schema property not forwarded: %#v", format)
	}
	opts, _ := body["options"].(map[string]any)
	if opts["temperature"] != 0.3 {
		t.Errorf("options = %#v, want temperature 0.3", body["options"])
	}
}

func TestOllamaEngine_HasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"mistral:latest"}]}`))
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, 0)
	if !e.HasModel(context.Background(), "mistral") {
		t.Error("HasModel(mistral) = false, want true")
	}
}
