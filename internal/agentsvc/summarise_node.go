package agentsvc

import (
	"context"
	"fmt"

	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/llm"
	"github.com/agentcore/runtime/internal/prompt"
	"github.com/agentcore/runtime/internal/session"
)

// SummarisePrep carries what the summariser prompt needs.
type SummarisePrep struct {
	ToolName    string
	Arguments   map[string]any
	Observation string
}

// summariseNode implements core.BaseNode[RunState, SummarisePrep, string].
// It invokes the LLM with a free-text summariser prompt and records the
// result as both the step's observation and the running final observation.
type summariseNode struct {
	llm     llm.Port
	prompts *prompt.Registry
}

func newSummariseNode(llmPort llm.Port, prompts *prompt.Registry) *summariseNode {
	return &summariseNode{llm: llmPort, prompts: prompts}
}

func (n *summariseNode) Prep(state *RunState) []SummarisePrep {
	d := state.Session.LastDecision
	obs := ""
	if state.Session.LastObservation != nil {
		obs = *state.Session.LastObservation
	}
	return []SummarisePrep{{ToolName: d.ToolName, Arguments: d.Arguments, Observation: obs}}
}

func (n *summariseNode) Exec(ctx context.Context, prep SummarisePrep) (string, error) {
	argsJSON := fmt.Sprintf("%v", prep.Arguments)
	sysPrompt, err := n.prompts.Render("summariser.step", "v1", map[string]any{
		"tool_name":   prep.ToolName,
		"arguments":   argsJSON,
		"observation": prep.Observation,
	})
	if err != nil {
		return "", err
	}
	return n.llm.Call(ctx, sysPrompt, "", llm.CallOptions{})
}

// ExecFallback returns a "(summary unavailable: <err>)" placeholder when the
// summariser LLM call fails; the raw tool result is still kept in the trace
// entry's Act field.
func (n *summariseNode) ExecFallback(err error) string {
	return "(summary unavailable: " + err.Error() + ")"
}

func (n *summariseNode) Post(state *RunState, prepRes []SummarisePrep, execResults ...string) core.Action {
	summary := execResults[0]
	decision := *state.Session.LastDecision

	var act *broker.ToolCallResult
	if state.Session.LastObservation != nil {
		act = &broker.ToolCallResult{Text: *state.Session.LastObservation}
	}
	state.Session.Trace = append(state.Session.Trace, session.TraceEntry{
		Plan:        decision,
		Act:         act,
		Observation: summary,
	})

	state.FinalObservation = summary
	state.publish("step.summary.received", map[string]any{"summary": summary})

	if err := session.OnSummarised(state.Session); err != nil {
		session.OnError(state.Session, err)
		return core.ActionFailure
	}

	// Safety: preserve forward progress across lifecycle variants. If the
	// transition left the session DONE but there are still steps left,
	// force it back to PLANNING.
	if state.Session.State == session.DONE && state.Session.StepIndex < state.Session.MaxSteps {
		state.Session.State = session.PLANNING
	}

	if state.Session.State == session.DONE {
		return core.ActionAnswer
	}
	return core.ActionDefault
}
