// Package azure implements llm.Port against Azure OpenAI, reusing the
// go-openai SDK's Azure-specific client configuration rather than a
// hand-rolled HTTP client.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/agentcore/runtime/internal/llm"
	openailib "github.com/sashabaranov/go-openai"
)

// Config holds the Azure OpenAI deployment parameters. Unlike the plain
// OpenAI config, "model" here is the deployment name, not a model id.
type Config struct {
	APIKey         string
	Endpoint       string // e.g. https://<resource>.openai.azure.com
	APIVersion     string // e.g. "2024-06-01"
	DeploymentName string
}

// Client implements llm.Port against a single Azure OpenAI deployment.
type Client struct {
	client *openailib.Client
	config *Config
}

// NewClient creates a Client from an explicit Config.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("azure: config cannot be nil")
	}
	if cfg.APIKey == "" || cfg.Endpoint == "" || cfg.DeploymentName == "" {
		return nil, errors.New("azure: api key, endpoint, and deployment name are required")
	}

	clientConfig := openailib.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		clientConfig.APIVersion = cfg.APIVersion
	}
	// Azure maps model names to deployment names via this callback.
	clientConfig.AzureModelMapperFunc = func(model string) string {
		return cfg.DeploymentName
	}

	return &Client{
		client: openailib.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Call implements llm.Port.
func (c *Client) Call(ctx context.Context, prompt, systemPrompt string, opts llm.CallOptions) (string, error) {
	req := c.buildRequest(prompt, systemPrompt, opts)
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("azure: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// CallStream implements llm.Port.
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
		Model:    c.config.DeploymentName,
		Messages: messages,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}
	if opts.JSONMode {
		req.ResponseFormat = &openailib.ChatCompletionResponseFormat{
			Type: openailib.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}
