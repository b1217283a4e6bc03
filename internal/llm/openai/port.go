package openai

import (
	"errors"
	"io"

	"context"

	"github.com/agentcore/runtime/internal/llm"
	openailib "github.com/sashabaranov/go-openai"
)

// Call implements llm.Port. It builds a two-message request (system, user)
// from prompt/systemPrompt, applying opts as per-call overrides on top of
// the client's configured defaults.
func (c *Client) Call(ctx context.Context, prompt, systemPrompt string, opts llm.CallOptions) (string, error) {
	req := c.buildRequest(prompt, systemPrompt, opts)
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned from LLM")
	}
	return resp.Choices[0].Message.Content, nil
}

// CallStream implements llm.Port. The returned channel is always closed,
// terminating in exactly one ChunkComplete or ChunkError.
func (c *Client) CallStream(ctx context.Context, prompt, systemPrompt string, opts llm.CallOptions) <-chan llm.StreamChunk {
	out := make(chan llm.StreamChunk)
	req := c.buildRequest(prompt, systemPrompt, opts)
	req.Stream = true

	go func() {
		defer close(out)

		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			out <- llm.StreamChunk{Kind: llm.ChunkError, Err: err}
			return
		}
		defer stream.Close()

		var full string
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- llm.StreamChunk{Kind: llm.ChunkComplete, Result: full}
				return
			}
			if err != nil {
				out <- llm.StreamChunk{Kind: llm.ChunkError, Err: err}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			full += delta
			select {
			case out <- llm.StreamChunk{Kind: llm.ChunkText, Text: delta}:
			case <-ctx.Done():
				out <- llm.StreamChunk{Kind: llm.ChunkError, Err: ctx.Err()}
				return
			}
		}
	}()

	return out
}

func (c *Client) buildRequest(prompt, systemPrompt string, opts llm.CallOptions) openailib.ChatCompletionRequest {
	var messages []openailib.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openailib.ChatCompletionMessage{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openailib.ChatCompletionMessage{Role: llm.RoleUser, Content: prompt})

	req := openailib.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: messages,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	} else if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	} else if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}
	if opts.JSONMode {
		req.ResponseFormat = &openailib.ChatCompletionResponseFormat{
			Type: openailib.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if c.config.ResolveThinkingMode() == "native" {
		req.ReasoningEffort = "medium"
	}
	return req
}
