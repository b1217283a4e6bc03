package agentsvc

import (
	"context"

	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/planner"
	"github.com/agentcore/runtime/internal/session"
)

// ActPrep carries the decision to execute.
type ActPrep struct {
	ToolName  string
	Arguments map[string]any
}

// actNode implements core.BaseNode[RunState, ActPrep, broker.ToolCallResult].
// Tool and transport failures surface as observation text, never as a Go
// error — only an unknown tool name is an Exec error.
type actNode struct {
	broker interface {
		CallTool(ctx context.Context, name string, args map[string]any) (broker.ToolCallResult, error)
	}
}

func newActNode(b interface {
	CallTool(ctx context.Context, name string, args map[string]any) (broker.ToolCallResult, error)
}) *actNode {
	return &actNode{broker: b}
}

func (n *actNode) Prep(state *RunState) []ActPrep {
	d := state.Session.LastDecision
	return []ActPrep{{ToolName: d.ToolName, Arguments: d.Arguments}}
}

func (n *actNode) Exec(ctx context.Context, prep ActPrep) (broker.ToolCallResult, error) {
	return n.broker.CallTool(ctx, prep.ToolName, prep.Arguments)
}

// ExecFallback renders a broker-level failure as observation text so the
// loop can continue to the summariser rather than failing the whole run.
func (n *actNode) ExecFallback(err error) broker.ToolCallResult {
	return broker.ToolCallResult{Text: "tool call failed: " + err.Error()}
}

func (n *actNode) Post(state *RunState, prepRes []ActPrep, execResults ...broker.ToolCallResult) core.Action {
	result := execResults[0]
	key := planner.CanonicalKey(prepRes[0].ToolName, prepRes[0].Arguments)
	state.Session.ExecutedCalls[key] = struct{}{}
	if err := session.OnExecuted(state.Session, result.Text); err != nil {
		session.OnError(state.Session, err)
		return core.ActionFailure
	}
	state.publish("step.tool_execution.finished", map[string]any{
		"tool": prepRes[0].ToolName, "result": result.Text,
	})
	return core.ActionDefault
}
