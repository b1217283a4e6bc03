package session

import (
	"github.com/agentcore/runtime/internal/broker"
	"github.com/google/uuid"
)

// TraceEntry is one (plan, act, observation) triple in a session's trace.
// Act is nil when the plan short-circuited the loop (GoalReached/Terminate).
type TraceEntry struct {
	Plan        Decision             `json:"plan"`
	Act         *broker.ToolCallResult `json:"act"`
	Observation string               `json:"observation"`
}

// AgentSession is the typed record describing one agent run. It is owned by
// a single agent task for the lifetime of the run and is never shared
// across concurrent runs or persisted.
type AgentSession struct {
	// ID identifies one run for logging and event correlation. It has no
	// meaning inside the state machine itself.
	ID         string
	UserPrompt string
	State      AgentState
	MaxSteps   int
	StepIndex  int

	// ToolsMeta is a snapshot of the broker's registry taken on first use.
	ToolsMeta []broker.ToolDescriptor

	LastDecision    *Decision
	LastObservation *string

	Trace []TraceEntry

	// ExecutedCalls tracks canonical (tool, arguments) pairs already run,
	// used by the planner to refuse to repeat an executed call while
	// re-planning.
	ExecutedCalls map[string]struct{}
}

// New creates a fresh AgentSession in the PLANNING state.
func New(userPrompt string, maxSteps int) *AgentSession {
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &AgentSession{
		ID:            uuid.NewString(),
		UserPrompt:    userPrompt,
		State:         PLANNING,
		MaxSteps:      maxSteps,
		ExecutedCalls: make(map[string]struct{}),
	}
}
