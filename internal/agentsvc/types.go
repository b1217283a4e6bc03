// Package agentsvc implements the Agent Service: the controller that
// drives an AgentSession's state machine using the Planner, Tool Broker,
// and Event Bus, producing a final observation plus a structured trace.
// The loop is assembled on top of the generic node/flow engine in
// internal/core, the same way the agent package originally built its
// decide/tool/answer loop.
package agentsvc

import (
	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/event"
	"github.com/agentcore/runtime/internal/planner"
	"github.com/agentcore/runtime/internal/session"
)

// parseErrorMarker tags a Terminate decision produced by planNode's
// ExecFallback when the planner could not be parsed at all, so Post can
// route to on_error instead of the normal terminal path.
const parseErrorMarker = "__plan_parse_error__: "

// RunState is the shared state threaded through the Agent Service's flow.
// A single RunState is owned by one agent task for the run's lifetime.
type RunState struct {
	Session *session.AgentSession
	Planner *planner.Planner
	Broker  *broker.Broker
	Bus     *event.Bus // nil is valid: no streaming subscriber attached

	// FinalObservation is the running "last good summary", returned to the
	// caller once the loop terminates.
	FinalObservation string
}

func (s *RunState) publish(typ event.Type, data map[string]any) {
	if s.Bus == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["session_id"] = s.Session.ID
	s.Bus.Publish(event.Event{Type: typ, Data: data})
}
