// Package planner builds planning prompts from an agent session, invokes
// the LLM in JSON mode, and parses/validates the resulting Decision.
package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/llm"
	"github.com/agentcore/runtime/internal/plan"
	"github.com/agentcore/runtime/internal/prompt"
	"github.com/agentcore/runtime/internal/session"
)

const observationHistoryLimit = 5

// Planner builds prompts via the Prompt Registry and resolves decisions
// through an llm.Port.
type Planner struct {
	llm      llm.Port
	prompts  *prompt.Registry
}

// New creates a Planner backed by llmPort and prompts. Pass prompt.Default
// for prompts in production.
func New(llmPort llm.Port, prompts *prompt.Registry) *Planner {
	return &Planner{llm: llmPort, prompts: prompts}
}

// PlanFull runs Mode A ("full plan"): the model chooses both the tool and
// its arguments.
func (p *Planner) PlanFull(ctx context.Context, sess *session.AgentSession) (session.Decision, error) {
	contextNote := p.contextNote(sess)
	toolsMeta := formatToolsMeta(sess.ToolsMeta)

	sysPrompt, err := p.prompts.Render("planner.system", "v1", map[string]any{
		"tools_meta":   toolsMeta,
		"context_note": contextNote,
	})
	if err != nil {
		return session.Decision{}, fmt.Errorf("planner: render system prompt: %w", err)
	}
	userPrompt, err := p.prompts.Render("planner.user", "v1", map[string]any{
		"goal":       sess.UserPrompt,
		"step_index": sess.StepIndex,
	})
	if err != nil {
		return session.Decision{}, fmt.Errorf("planner: render user prompt: %w", err)
	}

	raw, err := p.llm.Call(ctx, userPrompt, sysPrompt, llm.CallOptions{JSONMode: true})
	if err != nil {
		return session.Decision{}, fmt.Errorf("planner: llm call: %w", err)
	}
	return parseDecisionJSON(raw)
}

// PlanParamsOnly runs Mode B ("parameter-only"): toolName is pre-selected
// by the session's active goal; the model fills arguments only. The
// returned decision's tool name is force-set to toolName regardless of
// model output.
func (p *Planner) PlanParamsOnly(ctx context.Context, sess *session.AgentSession, toolName string, toolSchema json.RawMessage) (session.Decision, error) {
	return p.planParamsOnly(ctx, sess.UserPrompt, toolName, toolSchema)
}

// PlanParamsOnlyForGoal is Mode B driven directly from a plan-tree node's
// pre-selected tool (Node.MCPTool) rather than a caller-supplied tool name,
// folding the node's AssumedPreconditions/AssumedEffects into the step goal
// the same way the active-goal context note does for Mode A. Returns an
// error if node has no pre-selected tool.
func (p *Planner) PlanParamsOnlyForGoal(ctx context.Context, sess *session.AgentSession, node *plan.Node, toolSchema json.RawMessage) (session.Decision, error) {
	if node.MCPTool == nil {
		return session.Decision{}, fmt.Errorf("planner: goal %q has no pre-selected MCP tool", node.ID)
	}

	goal := node.Value
	var extra []string
	if len(node.AssumedPreconditions) > 0 {
		extra = append(extra, "Assumed preconditions for this step:\n- "+strings.Join(node.AssumedPreconditions, "\n- "))
	}
	if len(node.AssumedEffects) > 0 {
		extra = append(extra, "Target effects/outcomes for this step:\n- "+strings.Join(node.AssumedEffects, "\n- "))
	}
	if len(extra) > 0 {
		goal += "\n\n" + strings.Join(extra, "\n\n")
	}

	return p.planParamsOnly(ctx, goal, *node.MCPTool, toolSchema)
}

func (p *Planner) planParamsOnly(ctx context.Context, goal, toolName string, toolSchema json.RawMessage) (session.Decision, error) {
	sysPrompt, err := p.prompts.Render("planner.param_only", "v1", map[string]any{
		"tool_name":   toolName,
		"tool_schema": string(toolSchema),
		"goal":        goal,
	})
	if err != nil {
		return session.Decision{}, fmt.Errorf("planner: render param-only prompt: %w", err)
	}

	raw, err := p.llm.Call(ctx, sysPrompt, "", llm.CallOptions{JSONMode: true})
	if err != nil {
		return session.Decision{}, fmt.Errorf("planner: llm call: %w", err)
	}
	decision, err := parseDecisionJSON(raw)
	if err != nil {
		return session.Decision{}, err
	}
	if decision.IsCall() {
		decision.ToolName = toolName
	}
	return decision, nil
}

// Replan re-invokes the planner with a replanning prompt that incorporates
// the latest summary, accumulated facts, and the history of already
// executed (tool, args) pairs. It re-prompts once if the model proposes a
// call identical to an already-executed pair; if the second reply repeats
// an executed pair too, that decision is returned unchanged.
func (p *Planner) Replan(ctx context.Context, sess *session.AgentSession, latestSummary string) (session.Decision, error) {
	facts := collectFacts(sess)
	executed := formatExecutedCalls(sess)

	sysPrompt, err := p.prompts.Render("planner.replan", "v1", map[string]any{
		"goal":            sess.UserPrompt,
		"latest_summary":  latestSummary,
		"facts":           strings.Join(facts, "\n"),
		"executed_calls":  executed,
	})
	if err != nil {
		return session.Decision{}, fmt.Errorf("planner: render replan prompt: %w", err)
	}

	const maxAttempts = 2
	var decision session.Decision
	for attempt := 0; attempt < maxAttempts; attempt++ {
		raw, err := p.llm.Call(ctx, sysPrompt, "", llm.CallOptions{JSONMode: true})
		if err != nil {
			return session.Decision{}, fmt.Errorf("planner: llm call: %w", err)
		}
		decision, err = parseDecisionJSON(raw)
		if err != nil {
			return session.Decision{}, err
		}
		if !decision.IsCall() || !alreadyExecuted(sess, decision) {
			return decision, nil
		}
	}
	return decision, nil
}

// contextNote builds Mode A's system-prompt context note: empty on step 0,
// otherwise a summary of the previous tool/result/policy rules enriched
// with recent observation history and accumulated facts.
func (p *Planner) contextNote(sess *session.AgentSession) string {
	if sess.StepIndex == 0 || sess.LastObservation == nil {
		return ""
	}
	prevTool := ""
	if sess.LastDecision != nil {
		prevTool = sess.LastDecision.ToolName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Previous tool: %s\n", prevTool)
	fmt.Fprintf(&b, "Previous result: %s\n", *sess.LastObservation)
	b.WriteString("Policy: avoid repeating the same tool with the same arguments; ")
	b.WriteString("if a precondition for continuing is unmet, terminate with a reason; ")
	b.WriteString("if the goal is reached, reply goal_reached.\n")

	if hist := observationHistory(sess); len(hist) > 0 {
		b.WriteString("Recent observations:\n")
		for _, o := range hist {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}
	if facts := collectFacts(sess); len(facts) > 0 {
		b.WriteString("Known facts:\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return strings.TrimSpace(b.String())
}

// observationHistory returns the last N raw tool observations recorded in
// the trace.
func observationHistory(sess *session.AgentSession) []string {
	var all []string
	for _, t := range sess.Trace {
		if t.Act != nil {
			all = append(all, t.Act.Text)
		}
	}
	if len(all) <= observationHistoryLimit {
		return all
	}
	return all[len(all)-observationHistoryLimit:]
}

// collectFacts aggregates per-step facts best-effort: a step's summary may
// carry a Facts side-channel, parsed when present and otherwise ignored.
func collectFacts(sess *session.AgentSession) []string {
	var facts []string
	for _, t := range sess.Trace {
		facts = append(facts, extractFacts(t.Observation)...)
	}
	return facts
}

// extractFacts parses a best-effort "facts_generated" side-channel out of a
// summariser's free-text output when it was emitted as a JSON object
// embedded in otherwise free-text output. Absence is not an error.
func extractFacts(observation string) []string {
	start := strings.Index(observation, `{"facts_generated"`)
	if start < 0 {
		return nil
	}
	var payload struct {
		FactsGenerated []string `json:"facts_generated"`
	}
	if err := json.Unmarshal([]byte(observation[start:]), &payload); err != nil {
		return nil
	}
	return payload.FactsGenerated
}

// formatExecutedCalls renders the session's executed (tool, args) pairs as
// a bullet list for the replanning prompt.
func formatExecutedCalls(sess *session.AgentSession) string {
	if len(sess.ExecutedCalls) == 0 {
		return "(none yet)"
	}
	keys := make([]string, 0, len(sess.ExecutedCalls))
	for k := range sess.ExecutedCalls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s\n", k)
	}
	return strings.TrimSpace(b.String())
}

// alreadyExecuted reports whether decision's (tool, canonical-args) pair is
// already recorded on the session.
func alreadyExecuted(sess *session.AgentSession, decision session.Decision) bool {
	_, ok := sess.ExecutedCalls[CanonicalKey(decision.ToolName, decision.Arguments)]
	return ok
}

// CanonicalKey produces a stable key for a (tool, arguments) pair so
// repeated calls can be detected regardless of JSON key ordering.
func CanonicalKey(toolName string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	canon := make(map[string]any, len(args))
	for _, k := range keys {
		canon[k] = args[k]
	}
	data, _ := json.Marshal(canon)
	sum := sha256.Sum256(append([]byte(toolName+"|"), data...))
	return toolName + ":" + hex.EncodeToString(sum[:8])
}

func formatToolsMeta(tools []broker.ToolDescriptor) string {
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return strings.TrimSpace(b.String())
}

// parseDecisionJSON unmarshals raw as a JSON object and delegates to
// session.ParseDecision for variant validation.
func parseDecisionJSON(raw string) (session.Decision, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return session.Decision{}, fmt.Errorf("planner: decision is not a JSON object: %w", err)
	}
	return session.ParseDecision(obj)
}
