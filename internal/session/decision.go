package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DecisionKind identifies which variant of Decision is populated.
type DecisionKind int

const (
	// DecisionCall selects a tool to invoke with arguments.
	DecisionCall DecisionKind = iota
	// DecisionGoalReached signals the run's goal has been satisfied.
	DecisionGoalReached
	// DecisionTerminate signals the run should stop without success.
	DecisionTerminate
)

// ErrMissingVariant is returned when a decision's raw form names none, or
// more than one, of call_function/goal_reached/terminate.
var ErrMissingVariant = errors.New("session: decision must have exactly one variant")

// Decision is the planner's tagged-variant result for a single step.
// Exactly one of the three variants is populated; Kind says which.
type Decision struct {
	Kind DecisionKind

	// Call
	ToolName  string
	Arguments map[string]any

	// Terminate
	Reason string
}

// Call builds a Decision in the Call variant.
func Call(toolName string, arguments map[string]any) Decision {
	if arguments == nil {
		arguments = map[string]any{}
	}
	return Decision{Kind: DecisionCall, ToolName: toolName, Arguments: arguments}
}

// GoalReached builds a Decision in the GoalReached variant.
func GoalReached() Decision {
	return Decision{Kind: DecisionGoalReached}
}

// Terminate builds a Decision in the Terminate variant.
func Terminate(reason string) Decision {
	return Decision{Kind: DecisionTerminate, Reason: reason}
}

// IsCall reports whether d is the Call variant.
func (d Decision) IsCall() bool { return d.Kind == DecisionCall }

// IsTerminal reports whether d is GoalReached or Terminate — i.e. the loop
// should stop without an act step.
func (d Decision) IsTerminal() bool {
	return d.Kind == DecisionGoalReached || d.Kind == DecisionTerminate
}

// rawDecision is the wire shape produced by the planner's JSON-mode LLM
// call: at most one of the three keys is present, plus an optional
// arguments object for call_function.
type rawDecision struct {
	CallFunction string         `json:"call_function,omitempty"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	GoalReached  bool           `json:"goal_reached,omitempty"`
	Terminate    bool           `json:"terminate,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

// ParseDecision validates and converts a raw decision payload (already
// unmarshalled from the planner's JSON-mode output) into a Decision.
// Exactly one of call_function (non-empty string), goal_reached (true), or
// terminate (true, with a reason string) must be present; additional
// fields are ignored. arguments defaults to the empty map when absent.
func ParseDecision(raw map[string]any) (Decision, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return Decision{}, fmt.Errorf("session: re-marshal decision: %w", err)
	}
	var rd rawDecision
	if err := json.Unmarshal(buf, &rd); err != nil {
		return Decision{}, fmt.Errorf("session: decode decision: %w", err)
	}

	set := 0
	if rd.CallFunction != "" {
		set++
	}
	if rd.GoalReached {
		set++
	}
	if rd.Terminate {
		set++
	}
	if set != 1 {
		return Decision{}, ErrMissingVariant
	}

	switch {
	case rd.CallFunction != "":
		return Call(rd.CallFunction, rd.Arguments), nil
	case rd.GoalReached:
		return GoalReached(), nil
	default: // rd.Terminate
		return Terminate(rd.Reason), nil
	}
}

// MarshalJSON renders a Decision back into the same wire shape ParseDecision
// accepts, used when a Decision is embedded in a TraceEntry or AgentEvent.
func (d Decision) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DecisionCall:
		return json.Marshal(rawDecision{CallFunction: d.ToolName, Arguments: d.Arguments})
	case DecisionGoalReached:
		return json.Marshal(rawDecision{GoalReached: true})
	case DecisionTerminate:
		return json.Marshal(rawDecision{Terminate: true, Reason: d.Reason})
	default:
		return nil, fmt.Errorf("session: unknown decision kind %d", d.Kind)
	}
}

// UnmarshalJSON restores a Decision from the wire shape, used by tests and
// any caller replaying a TraceEntry from JSON.
func (d *Decision) UnmarshalJSON(b []byte) error {
	var rd rawDecision
	if err := json.Unmarshal(b, &rd); err != nil {
		return err
	}
	raw := map[string]any{}
	if rd.CallFunction != "" {
		raw["call_function"] = rd.CallFunction
		raw["arguments"] = rd.Arguments
	}
	if rd.GoalReached {
		raw["goal_reached"] = true
	}
	if rd.Terminate {
		raw["terminate"] = true
		raw["reason"] = rd.Reason
	}
	parsed, err := ParseDecision(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
