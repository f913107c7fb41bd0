package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type mockEngine struct {
	isRunning bool
	models    map[string]bool
	pulled    []string

	reply    string
	err      error
	delay    time.Duration
	lastMsgs []Message
	format   *Schema
}

func (m *mockEngine) Chat(ctx context.Context, _ string, msgs []Message, format *Schema) (string, error) {
	m.lastMsgs = msgs
	m.format = format
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.reply, m.err
}
func (m *mockEngine) IsRunning(_ context.Context) bool            { return m.isRunning }
func (m *mockEngine) HasModel(_ context.Context, name string) bool { return m.models[name] }
func (m *mockEngine) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	m.pulled = append(m.pulled, name)
	if cb != nil {
		cb(PullProgress{Status: "success"})
	}
	return nil
}

func TestEnsureReady_ModelPresent(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{"mistral": true}}
	var out bytes.Buffer
	if err := EnsureReady(context.Background(), m, "mistral", &out); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
	if !strings.Contains(out.String(), "model mistral: warm") {
		t.Errorf("output missing warm-up line:\n%s", out.String())
	}
}

func TestEnsureReady_PullsMissing(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{}}
	if err := EnsureReady(context.Background(), m, "mistral", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "mistral" {
		t.Errorf("expected pull of mistral, got %v", m.pulled)
	}
}

func TestEnsureReady_WarmupFailureNonFatal(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{"mistral": true}, err: errors.New("boom")}
	var out bytes.Buffer
	if err := EnsureReady(context.Background(), m, "mistral", &out); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if !strings.Contains(out.String(), "warm-up failed") {
		t.Errorf("output missing warm-up failure:\n%s", out.String())
	}
}

func TestEnsureReady_EngineDown(t *testing.T) {
	m := &mockEngine{isRunning: false}
	if err := EnsureReady(context.Background(), m, "mistral", io.Discard); err == nil {
		t.Fatal("expected error when engine is down")
	}
}
