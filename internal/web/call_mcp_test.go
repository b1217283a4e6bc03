package web

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentcore/runtime/internal/agentsvc"
	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/planner"
	"github.com/agentcore/runtime/internal/prompt"
)

func TestCallMCPHandler_503sWhenBrokerHasNoTools(t *testing.T) {
	b := broker.New(nil)
	reg := prompt.New()
	if err := prompt.LoadEmbeddedDefaults(reg); err != nil {
		t.Fatalf("LoadEmbeddedDefaults: %v", err)
	}
	p := planner.New(&fakeLLMPort{}, reg)
	svc := agentsvc.New(p, b, &fakeLLMPort{}, reg)

	h := NewCallMCPHandler("secret", svc, b)
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/call_mcp", strings.NewReader(`{"prompt":"do a thing"}`))
	r.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(w, r)

	if w.Code != 503 {
		t.Errorf("got status %d, want 503", w.Code)
	}
}
