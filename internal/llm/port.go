package llm

import "context"

// CallOptions configures a single LLM call. Zero values mean "use the
// provider's default" except JSONMode, which is always explicit.
type CallOptions struct {
	JSONMode    bool
	MaxTokens   int
	Temperature *float32
	TopP        *float32
}

// ChunkKind tags a StreamChunk's variant.
type ChunkKind int

const (
	// ChunkText carries a partial text delta.
	ChunkText ChunkKind = iota
	// ChunkComplete is the terminal record; Result is the full concatenation.
	ChunkComplete
	// ChunkError is the terminal record on provider failure.
	ChunkError
)

// StreamChunk is one element of the lazy sequence CallStream produces.
// Exactly one of Text, Result, or Err is meaningful, selected by Kind.
type StreamChunk struct {
	Kind   ChunkKind
	Text   string
	Result string
	Err    error
}

// Port is the contract the agent service and planner use to talk to a
// language model, independent of provider (OpenAI, Azure OpenAI, or any
// OpenAI-compatible endpoint).
type Port interface {
	// Call blocks until the model returns a complete response. When
	// opts.JSONMode is true the caller may assume the result parses as a
	// single JSON object.
	Call(ctx context.Context, prompt, systemPrompt string, opts CallOptions) (string, error)

	// CallStream returns a finite, single-pass sequence of chunks ending
	// in exactly one ChunkComplete or ChunkError. The returned channel is
	// always closed by the implementation, even on ctx cancellation.
	CallStream(ctx context.Context, prompt, systemPrompt string, opts CallOptions) <-chan StreamChunk
}
