package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentcore/runtime/internal/llm"
)

type fakeLLMPort struct {
	result string
	err    error
}

func (f *fakeLLMPort) Call(ctx context.Context, prompt, systemPrompt string, opts llm.CallOptions) (string, error) {
	return f.result, f.err
}

func (f *fakeLLMPort) CallStream(ctx context.Context, prompt, systemPrompt string, opts llm.CallOptions) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, 2)
	ch <- llm.StreamChunk{Kind: llm.ChunkText, Text: f.result}
	ch <- llm.StreamChunk{Kind: llm.ChunkComplete, Result: f.result}
	close(ch)
	return ch
}

func TestHealthHandler_ReportsDegradedWhenMCPNotReady(t *testing.T) {
	h := NewHealthHandler("secret", func() bool { return false })
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/health", nil)
	r.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(w, r)

	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.MCPReady {
		t.Errorf("got %+v", resp)
	}
}

func TestHealthHandler_RejectsBadToken(t *testing.T) {
	h := NewHealthHandler("secret", func() bool { return true })
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/health", nil)
	h.ServeHTTP(w, r)
	if w.Code != 401 {
		t.Errorf("got %d, want 401", w.Code)
	}
}

func TestCallHandler_ReturnsLLMResultWithNullTraceAndPlan(t *testing.T) {
	h := NewCallHandler("secret", &fakeLLMPort{result: "hi there"})
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/call", strings.NewReader(`{"prompt":"hello"}`))
	r.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("got status %d body %s", w.Code, w.Body.String())
	}
	var resp callResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result != "hi there" {
		t.Errorf("got result %q", resp.Result)
	}
	if resp.Trace != nil || resp.Plan != nil {
		t.Errorf("expected nil trace/plan, got %+v / %+v", resp.Trace, resp.Plan)
	}
}

func TestCallHandler_RejectsNonPost(t *testing.T) {
	h := NewCallHandler("secret", &fakeLLMPort{})
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/call", nil)
	r.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(w, r)
	if w.Code != 405 {
		t.Errorf("got %d, want 405", w.Code)
	}
}
