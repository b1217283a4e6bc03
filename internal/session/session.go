package session

import "fmt"

// TransitionError reports an illegal state-machine edge. Per the
// transition table, any attempt to cross an edge that isn't listed is a
// programmer error; callers are expected to treat it as fatal to the run
// rather than something to branch on.
type TransitionError struct {
	From  AgentState
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session: illegal transition %q from state %s", e.Event, e.From)
}

// Start moves a freshly constructed session into PLANNING. It is a no-op
// guard: sessions are already constructed in PLANNING by New, but callers
// that build an AgentSession by hand (tests, replays) call Start to assert
// the invariant before driving the loop.
func Start(s *AgentSession) error {
	if s.StepIndex != 0 || len(s.Trace) != 0 {
		return &TransitionError{From: s.State, Event: "start"}
	}
	s.State = PLANNING
	return nil
}

// OnPlanned records the planner's decision and advances the state machine.
//   PLANNING -> EXECUTING   (Call decision)
//   PLANNING -> DONE        (GoalReached or Terminate decision)
func OnPlanned(s *AgentSession, d Decision) error {
	if s.State != PLANNING {
		return &TransitionError{From: s.State, Event: "on_planned"}
	}
	s.LastDecision = &d
	if d.IsCall() {
		s.State = EXECUTING
		return nil
	}
	s.State = DONE
	return nil
}

// OnExecuted records a tool's observation and advances EXECUTING -> SUMMARISING.
func OnExecuted(s *AgentSession, observation string) error {
	if s.State != EXECUTING {
		return &TransitionError{From: s.State, Event: "on_executed"}
	}
	if s.LastDecision == nil {
		return &TransitionError{From: s.State, Event: "on_executed (no decision)"}
	}
	s.LastObservation = &observation
	s.State = SUMMARISING
	return nil
}

// OnSummarised advances SUMMARISING -> PLANNING or SUMMARISING -> DONE,
// incrementing StepIndex by exactly 1. This is the only transition that
// changes StepIndex.
func OnSummarised(s *AgentSession) error {
	if s.State != SUMMARISING {
		return &TransitionError{From: s.State, Event: "on_summarised"}
	}
	s.StepIndex++
	if s.StepIndex < s.MaxSteps {
		s.State = PLANNING
	} else {
		s.State = DONE
	}
	return nil
}

// OnError moves the session to the terminal ERROR state from any state.
// Unlike the other transitions this edge is legal from everywhere, matching
// "any -> ERROR" in the transition table.
func OnError(s *AgentSession, _ error) {
	s.State = ERROR
}
