package openai

import (
	"testing"

	"github.com/agentcore/runtime/internal/llm"
)

func TestBuildRequest_JSONModeSetsResponseFormat(t *testing.T) {
	temp := float32(0.2)
	c := &Client{config: &Config{Model: "gpt-4o", ThinkingMode: "app"}}
	req := c.buildRequest("do the thing", "you are an agent", llm.CallOptions{JSONMode: true, Temperature: &temp})

	if req.Model != "gpt-4o" {
		t.Errorf("model = %q", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
	if req.ResponseFormat == nil {
		t.Fatal("expected ResponseFormat to be set when JSONMode is true")
	}
	if req.Temperature != temp {
		t.Errorf("temperature = %v, want %v", req.Temperature, temp)
	}
}

func TestBuildRequest_EmptySystemPromptOmitsMessage(t *testing.T) {
	c := &Client{config: &Config{Model: "gpt-4o", ThinkingMode: "app"}}
	req := c.buildRequest("hello", "", llm.CallOptions{})

	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("expected single user message, got %+v", req.Messages)
	}
	if req.ResponseFormat != nil {
		t.Error("expected no ResponseFormat when JSONMode is false")
	}
}
