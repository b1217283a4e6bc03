package agentsvc

import (
	"context"
	"testing"

	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/event"
	"github.com/agentcore/runtime/internal/llm"
	"github.com/agentcore/runtime/internal/mcp"
	"github.com/agentcore/runtime/internal/planner"
	"github.com/agentcore/runtime/internal/prompt"
	"github.com/agentcore/runtime/internal/session"
)

// fakeTransport is the minimal mcp transport double, same shape as the one
// internal/broker's own tests use.
type fakeTransport struct {
	tools []mcp.ToolInfo
	text  string
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }
func (f *fakeTransport) ListTools(ctx context.Context) ([]mcp.ToolInfo, error) {
	return f.tools, nil
}
func (f *fakeTransport) CallTool(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	return f.text, false, nil
}
func (f *fakeTransport) Disconnect() {}

func newTestBroker(t *testing.T, serverID string, ft *fakeTransport) *broker.Broker {
	t.Helper()
	b := broker.New(nil)
	b.SetTransportFactory(func(cfg mcp.ServerConfig, hs *mcp.HandshakeChannel) broker.Transport {
		return ft
	})
	if errs := b.Init(context.Background(), map[string]mcp.ServerConfig{
		serverID: {ServerID: serverID},
	}); len(errs) != 0 {
		t.Fatalf("Init: %v", errs)
	}
	return b
}

// fakePort drives the scripted sequence of LLM responses the run needs: one
// JSON decision per plan step, one free-text summary per step.
type fakePort struct {
	responses []string
	i         int
}

func (f *fakePort) Call(ctx context.Context, prompt, systemPrompt string, opts llm.CallOptions) (string, error) {
	r := f.responses[f.i]
	if f.i < len(f.responses)-1 {
		f.i++
	}
	return r, nil
}

func (f *fakePort) CallStream(ctx context.Context, prompt, systemPrompt string, opts llm.CallOptions) <-chan llm.StreamChunk {
	panic("not used")
}

func newRegistry(t *testing.T) *prompt.Registry {
	t.Helper()
	r := prompt.New()
	if err := prompt.LoadEmbeddedDefaults(r); err != nil {
		t.Fatalf("LoadEmbeddedDefaults: %v", err)
	}
	return r
}

func TestRun_GoalReachedImmediatelyEndsInDone(t *testing.T) {
	port := &fakePort{responses: []string{`{"goal_reached": true}`}}
	reg := newRegistry(t)
	p := planner.New(port, reg)
	b := broker.New(nil)
	svc := New(p, b, port, reg)

	sess := session.New("say hello", 3)
	result, trace := svc.Run(context.Background(), sess, nil)

	if sess.State != session.DONE {
		t.Fatalf("expected DONE, got %v", sess.State)
	}
	if len(trace) != 1 || trace[0].Observation != "Planning indicated completion." {
		t.Errorf("unexpected trace: %+v", trace)
	}
	if result != "" {
		t.Errorf("expected empty final observation for immediate goal_reached, got %q", result)
	}
}

func TestRun_SingleToolStepThenGoalReached(t *testing.T) {
	ft := &fakeTransport{tools: []mcp.ToolInfo{{Name: "sum"}}, text: "7"}
	b := newTestBroker(t, "calc", ft)

	port := &fakePort{responses: []string{
		`{"call_function": "sum", "arguments": {"a": 3, "b": 4}}`,
		"the sum is 7",
		`{"goal_reached": true}`,
	}}
	reg := newRegistry(t)
	p := planner.New(port, reg)
	svc := New(p, b, port, reg)

	bus := event.New()
	var seen []event.Type
	done := make(chan struct{})
	go func() {
		for ev := range bus.Subscribe() {
			seen = append(seen, ev.Type)
		}
		close(done)
	}()

	sess := session.New("add 3 and 4", 3)
	result, trace := svc.Run(context.Background(), sess, bus)
	bus.Close()
	<-done

	if sess.State != session.DONE {
		t.Fatalf("expected DONE, got %v", sess.State)
	}
	if result != "the sum is 7" {
		t.Errorf("got final observation %q", result)
	}
	if len(trace) != 2 {
		t.Fatalf("expected 2 trace entries, got %d: %+v", len(trace), trace)
	}
	if len(seen) == 0 {
		t.Error("expected at least one event published over the bus")
	}
	if _, ok := sess.ExecutedCalls[planner.CanonicalKey("sum", map[string]any{"a": float64(3), "b": float64(4)})]; !ok {
		t.Error("expected the executed call to be recorded on the session")
	}
}

func TestRun_MaxStepsForcesDoneWithoutGoalReached(t *testing.T) {
	ft := &fakeTransport{tools: []mcp.ToolInfo{{Name: "noop"}}, text: "ok"}
	b := newTestBroker(t, "s", ft)

	port := &fakePort{responses: []string{
		`{"call_function": "noop", "arguments": {}}`,
		"did nothing",
	}}
	reg := newRegistry(t)
	p := planner.New(port, reg)
	svc := New(p, b, port, reg)

	sess := session.New("loop forever", 1)
	_, trace := svc.Run(context.Background(), sess, nil)

	if sess.State != session.DONE {
		t.Fatalf("expected DONE at max steps, got %v", sess.State)
	}
	if len(trace) != 1 {
		t.Fatalf("expected exactly 1 trace entry at max_steps=1, got %d", len(trace))
	}
}

func TestRun_PlannerParseFailureEndsInError(t *testing.T) {
	port := &fakePort{responses: []string{"not json at all"}}
	reg := newRegistry(t)
	p := planner.New(port, reg)
	b := broker.New(nil)
	svc := New(p, b, port, reg)

	sess := session.New("do something", 3)
	result, _ := svc.Run(context.Background(), sess, nil)

	if sess.State != session.ERROR {
		t.Fatalf("expected ERROR, got %v", sess.State)
	}
	if result == "" {
		t.Error("expected a non-empty error observation")
	}
}
