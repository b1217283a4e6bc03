package agentsvc

import (
	"context"
	"strings"

	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/session"
)

// PlanPrep is the single work item planNode hands to Exec: the session at
// the moment planning starts.
type PlanPrep struct {
	Sess *session.AgentSession
}

// planNode implements core.BaseNode[RunState, PlanPrep, session.Decision].
// It calls the Planner and classifies the result.
type planNode struct {
	planner interface {
		PlanFull(ctx context.Context, sess *session.AgentSession) (session.Decision, error)
		Replan(ctx context.Context, sess *session.AgentSession, latestSummary string) (session.Decision, error)
	}
}

func newPlanNode(p interface {
	PlanFull(ctx context.Context, sess *session.AgentSession) (session.Decision, error)
	Replan(ctx context.Context, sess *session.AgentSession, latestSummary string) (session.Decision, error)
}) *planNode {
	return &planNode{planner: p}
}

func (n *planNode) Prep(state *RunState) []PlanPrep {
	state.publish("planning.started", nil)
	return []PlanPrep{{Sess: state.Session}}
}

func (n *planNode) Exec(ctx context.Context, prep PlanPrep) (session.Decision, error) {
	if needsReplanning(prep.Sess) {
		return n.planner.Replan(ctx, prep.Sess, prep.Sess.Trace[len(prep.Sess.Trace)-1].Observation)
	}
	return n.planner.PlanFull(ctx, prep.Sess)
}

// ExecFallback converts a planner failure (malformed JSON, provider error
// after retries) into a Terminate decision tagged so Post routes the
// session to ERROR, per the "on parse failure, move to ERROR" rule.
func (n *planNode) ExecFallback(err error) session.Decision {
	return session.Terminate(parseErrorMarker + err.Error())
}

func (n *planNode) Post(state *RunState, prepRes []PlanPrep, execResults ...session.Decision) core.Action {
	decision := execResults[0]

	if reason, isParseError := parseErrorReason(decision); isParseError {
		session.OnError(state.Session, errString(reason))
		state.publish("error", map[string]any{"message": reason})
		state.FinalObservation = "Agent error: " + reason
		return core.ActionFailure
	}

	if err := session.OnPlanned(state.Session, decision); err != nil {
		session.OnError(state.Session, err)
		return core.ActionFailure
	}

	if decision.IsTerminal() {
		state.Session.Trace = append(state.Session.Trace, session.TraceEntry{
			Plan:        decision,
			Act:         nil,
			Observation: "Planning indicated completion.",
		})
		return core.ActionAnswer
	}

	state.publish("step.tool_execution.started", map[string]any{
		"tool": decision.ToolName, "arguments": decision.Arguments,
	})
	return core.ActionTool
}

// needsReplanning reports whether the previous step's summary (the last
// trace entry's observation) signals the planner should be re-invoked with
// replanning context rather than a plain next-step plan.
func needsReplanning(sess *session.AgentSession) bool {
	if len(sess.Trace) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(sess.Trace[len(sess.Trace)-1].Observation), "not ready to proceed")
}

func parseErrorReason(d session.Decision) (string, bool) {
	if d.Kind != session.DecisionTerminate {
		return "", false
	}
	if !strings.HasPrefix(d.Reason, parseErrorMarker) {
		return "", false
	}
	return strings.TrimPrefix(d.Reason, parseErrorMarker), true
}

type errString string

func (e errString) Error() string { return string(e) }
