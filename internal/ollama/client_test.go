package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func tagsJSON(names ...string) []byte {
	type entry struct {
		Name string `json:"name"`
	}
	var r struct {
		Models []entry `json:"models"`
	}
	for _, n := range names {
		r.Models = append(r.Models, entry{Name: n})
	}
	b, _ := json.Marshal(r)
	return b
}

func TestIsRunning_Up(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"version":"0.6.2"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if !c.IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}
	v, err := c.Version(context.Background())
	if err != nil || v != "0.6.2" {
		t.Errorf("Version() = %q, %v; want 0.6.2", v, err)
	}
}

func TestIsRunning_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL)
	if c.IsRunning(context.Background()) {
		t.Error("IsRunning() = true, want false")
	}
}

func TestHasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("mistral:latest", "llama3.2:3b"))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	if !c.HasModel(context.Background(), "mistral") {
		t.Error("HasModel(mistral) = false, want true")
	}
	if !c.HasModel(context.Background(), "llama3.2:3b") {
		t.Error("HasModel(llama3.2:3b) = false, want true")
	}
	if c.HasModel(context.Background(), "phi3.5") {
		t.Error("HasModel(phi3.5) = true, want false")
	}
}

func TestChat_SendsFormatAndOptions(t *testing.T) {
	var got chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: `{"data":{},"response":"Salut !"}`},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	schema := &Schema{
		Type: "object",
		Properties: map[string]SchemaProperty{
			"data":     {Type: "object"},
			"response": {Type: "string"},
		},
		Required: []string{"data", "response"},
	}
	out, err := c.Chat(context.Background(), "mistral", []Message{{Role: "user", Content: "Bonjour"}}, schema, &Options{Temperature: 0.4})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != `{"data":{},"response":"Salut !"}` {
		t.Errorf("Chat() = %q", out)
	}

	if got.Model != "mistral" || got.Stream {
		t.Errorf("request model=%q stream=%v", got.Model, got.Stream)
	}
	format, ok := got.Format.(map[string]any)
	if !ok || format["type"] != "object" {
		t.Errorf("format = %#v, want schema object", got.Format)
	}
	if got.Options == nil || got.Options.Temperature != 0.4 {
		t.Errorf("options = %+v, want temperature 0.4", got.Options)
	}
}

func TestChat_PlainOmitsFormat(t *testing.T) {
	var raw map[string]json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: "hi"}})
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Chat(context.Background(), "mistral", nil, nil, nil); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, ok := raw["format"]; ok {
		t.Error("format should be omitted for plain chat")
	}
	if _, ok := raw["options"]; ok {
		t.Error("options should be omitted when nil")
	}
}

func TestChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"nope\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Chat(context.Background(), "nope", nil, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want upstream message", err)
	}
}

func TestPullModel_Progress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Name != "mistral" {
			t.Errorf("pull model = %q, want mistral", body.Name)
		}

		enc := json.NewEncoder(w)
		enc.Encode(PullProgress{Status: "downloading", Total: 1000, Completed: 500})
		enc.Encode(PullProgress{Status: "downloading", Total: 1000, Completed: 1000})
		enc.Encode(PullProgress{Status: "success"})
	}))
	defer srv.Close()

	var n int
	err := New(srv.URL).PullModel(context.Background(), "mistral", func(PullProgress) { n++ })
	if err != nil {
		t.Fatalf("PullModel: %v", err)
	}
	if n != 3 {
		t.Errorf("received %d progress updates, want 3", n)
	}
}
