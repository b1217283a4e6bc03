package agentsvc

import (
	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/llm"
	"github.com/agentcore/runtime/internal/planner"
	"github.com/agentcore/runtime/internal/prompt"
	"github.com/agentcore/runtime/internal/session"
)

// buildFlow assembles the plan -> act -> summarise loop:
//
//	planNode ──┬── ActionTool   → actNode ──→ summariseNode ──┬── ActionDefault → planNode
//	           └── ActionAnswer → (end)                       └── ActionAnswer  → (end)
//
// ActionFailure from any node ends the flow with no successor registered.
func buildFlow(p *planner.Planner, b *broker.Broker, llmPort llm.Port, prompts *prompt.Registry) core.Workflow[RunState] {
	plan := core.NewNode[RunState, PlanPrep, session.Decision](newPlanNode(p), 0)
	act := core.NewNode[RunState, ActPrep, broker.ToolCallResult](newActNode(b), 0)
	summarise := core.NewNode[RunState, SummarisePrep, string](newSummariseNode(llmPort, prompts), 0)

	plan.AddSuccessor(act, core.ActionTool)
	act.AddSuccessor(summarise) // ActionDefault
	summarise.AddSuccessor(plan, core.ActionDefault)
	// ActionAnswer and ActionFailure have no registered successor on any
	// node, so the flow ends naturally when either is returned.

	return core.NewFlow[RunState](plan)
}
