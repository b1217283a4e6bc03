package broker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore/runtime/internal/mcp"
)

type fakeTransport struct {
	connectErr error
	tools      []mcp.ToolInfo
	listErr    error
	callText   string
	callIsErr  bool
	callErr    error
	connected  bool
	disconnect int
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) ListTools(ctx context.Context) ([]mcp.ToolInfo, error) {
	return f.tools, f.listErr
}

func (f *fakeTransport) CallTool(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	return f.callText, f.callIsErr, f.callErr
}

func (f *fakeTransport) Disconnect() {
	f.disconnect++
	f.connected = false
}

func newTestBroker(transports map[string]*fakeTransport) *Broker {
	b := New(nil)
	b.newTransport = func(cfg mcp.ServerConfig, hs *mcp.HandshakeChannel) Transport {
		return transports[cfg.ServerID]
	}
	return b
}

func TestInit_RegistersToolsWithServerID(t *testing.T) {
	ft := &fakeTransport{tools: []mcp.ToolInfo{{Name: "sum", Description: "adds", InputSchema: json.RawMessage(`{}`)}}}
	b := newTestBroker(map[string]*fakeTransport{"calc": ft})

	errs := b.Init(context.Background(), map[string]mcp.ServerConfig{
		"calc": {ServerID: "calc", Type: mcp.TransportStdio},
	})
	if len(errs) != 0 {
		t.Fatalf("Init errors: %v", errs)
	}
	tools := b.ListTools()
	if len(tools) != 1 || tools[0].Name != "sum" || tools[0].ServerID != "calc" {
		t.Errorf("got %+v", tools)
	}
}

func TestInit_ConnectFailureIsSkippedNotFatal(t *testing.T) {
	good := &fakeTransport{tools: []mcp.ToolInfo{{Name: "ok"}}}
	bad := &fakeTransport{connectErr: errConnect}
	b := newTestBroker(map[string]*fakeTransport{"good": good, "bad": bad})

	errs := b.Init(context.Background(), map[string]mcp.ServerConfig{
		"good": {ServerID: "good"},
		"bad":  {ServerID: "bad"},
	})
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 error, got %v", errs)
	}
	if len(b.ListTools()) != 1 {
		t.Errorf("expected the surviving server's tool to still be registered")
	}
}

func TestInit_RejectsCrossServerNameCollision(t *testing.T) {
	first := &fakeTransport{tools: []mcp.ToolInfo{{Name: "dup"}}}
	second := &fakeTransport{tools: []mcp.ToolInfo{{Name: "dup"}}}
	b := New(nil)
	b.newTransport = func(cfg mcp.ServerConfig, hs *mcp.HandshakeChannel) Transport {
		if cfg.ServerID == "first" {
			return first
		}
		return second
	}

	if err := b.connectAndRegister(context.Background(), "first", mcp.ServerConfig{ServerID: "first"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := b.connectAndRegister(context.Background(), "second", mcp.ServerConfig{ServerID: "second"})
	if err == nil {
		t.Fatal("expected a collision error")
	}
	tools := b.ListTools()
	if len(tools) != 1 || tools[0].ServerID != "first" {
		t.Errorf("expected the first registration to win, got %+v", tools)
	}
}

func TestCallTool_UnknownNameIsNotFound(t *testing.T) {
	b := newTestBroker(nil)
	_, err := b.CallTool(context.Background(), "nope", nil)
	if _, ok := err.(*ErrNotFound); !ok {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCallTool_DelegatesToOwningServer(t *testing.T) {
	ft := &fakeTransport{tools: []mcp.ToolInfo{{Name: "sum"}}, callText: "5"}
	b := newTestBroker(map[string]*fakeTransport{"calc": ft})
	b.Init(context.Background(), map[string]mcp.ServerConfig{"calc": {ServerID: "calc"}})

	result, err := b.CallTool(context.Background(), "sum", map[string]any{"a": 2, "b": 3})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.Text != "5" {
		t.Errorf("got %q, want %q", result.Text, "5")
	}
}

func TestReconnect_PreservesToolSet(t *testing.T) {
	tools := []mcp.ToolInfo{{Name: "sum"}, {Name: "avg"}}
	first := &fakeTransport{tools: tools}
	second := &fakeTransport{tools: tools}
	callCount := 0
	b := New(nil)
	b.newTransport = func(cfg mcp.ServerConfig, hs *mcp.HandshakeChannel) Transport {
		callCount++
		if callCount == 1 {
			return first
		}
		return second
	}
	b.Init(context.Background(), map[string]mcp.ServerConfig{"calc": {ServerID: "calc"}})

	before := b.ListTools()
	if err := b.Reconnect(context.Background(), "calc"); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	after := b.ListTools()

	if len(before) != len(after) {
		t.Fatalf("tool count changed: before=%d after=%d", len(before), len(after))
	}
	for i := range before {
		if before[i].Name != after[i].Name {
			t.Errorf("tool set changed: before=%v after=%v", before, after)
		}
	}
	if first.disconnect != 1 {
		t.Errorf("expected old transport disconnected once, got %d", first.disconnect)
	}
}

func TestShutdown_DisconnectsAllAndClearsRegistry(t *testing.T) {
	a := &fakeTransport{tools: []mcp.ToolInfo{{Name: "a"}}}
	c := &fakeTransport{tools: []mcp.ToolInfo{{Name: "c"}}}
	b := newTestBroker(map[string]*fakeTransport{"a": a, "c": c})
	b.Init(context.Background(), map[string]mcp.ServerConfig{
		"a": {ServerID: "a"},
		"c": {ServerID: "c"},
	})

	b.Shutdown()

	if len(b.ListTools()) != 0 {
		t.Error("expected empty registry after Shutdown")
	}
	if a.disconnect != 1 || c.disconnect != 1 {
		t.Errorf("expected every server disconnected once, got a=%d c=%d", a.disconnect, c.disconnect)
	}
}

var errConnect = &fakeConnectError{}

type fakeConnectError struct{}

func (e *fakeConnectError) Error() string { return "connect refused" }
