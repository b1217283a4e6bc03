package agentsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/event"
	"github.com/agentcore/runtime/internal/llm"
	"github.com/agentcore/runtime/internal/planner"
	"github.com/agentcore/runtime/internal/prompt"
	"github.com/agentcore/runtime/internal/session"
)

// Service drives one AgentSession to completion using a Planner, a Tool
// Broker, and an optional Event Bus. It never raises to its caller: any
// unexpected failure is folded into on_error and reported through the
// returned observation string.
type Service struct {
	planner *planner.Planner
	broker  *broker.Broker
	llm     llm.Port
	prompts *prompt.Registry
}

// New creates a Service. prompts defaults to prompt.Default when nil.
func New(p *planner.Planner, b *broker.Broker, llmPort llm.Port, prompts *prompt.Registry) *Service {
	if prompts == nil {
		prompts = prompt.Default
	}
	return &Service{planner: p, broker: b, llm: llmPort, prompts: prompts}
}

// Run executes sess's plan -> act -> summarise loop until it reaches DONE
// or ERROR, and returns the final observation plus the accumulated trace.
// bus may be nil when no streaming subscriber is attached.
func (s *Service) Run(ctx context.Context, sess *session.AgentSession, bus *event.Bus) (result string, trace []session.TraceEntry) {
	state := &RunState{Session: sess, Planner: s.planner, Broker: s.broker, Bus: bus}

	defer func() {
		if r := recover(); r != nil {
			session.OnError(sess, fmt.Errorf("panic: %v", r))
			state.publish(event.TypeError, map[string]any{"message": fmt.Sprintf("%v", r)})
			result = fmt.Sprintf("Agent error: %v", r)
			trace = sess.Trace
		}
	}()

	if err := session.Start(sess); err != nil {
		// Start is only a guard for hand-built sessions; a session freshly
		// made via session.New never trips it, so this is always a caller
		// error when it does fire.
		session.OnError(sess, err)
		return fmt.Sprintf("Agent error: %v", err), sess.Trace
	}
	if len(sess.ToolsMeta) == 0 && s.broker != nil {
		sess.ToolsMeta = s.broker.ListTools()
	}

	state.publish(event.TypeSessionStarted, map[string]any{"goal": sess.UserPrompt})

	flow := buildFlow(s.planner, s.broker, s.llm, s.prompts)
	flow.Run(ctx, state)

	if sess.State == session.ERROR {
		if strings.HasPrefix(state.FinalObservation, "Agent error: ") {
			return state.FinalObservation, sess.Trace
		}
		msg := "unspecified failure"
		if sess.LastObservation != nil {
			msg = *sess.LastObservation
		}
		return fmt.Sprintf("Agent error: %s", msg), sess.Trace
	}
	return state.FinalObservation, sess.Trace
}
