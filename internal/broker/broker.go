package broker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/agentcore/runtime/internal/mcp"
)

// toolCallTimeout caps a single MCP tool call so a hung server cannot stall
// an agent run indefinitely.
const toolCallTimeout = 60 * time.Second

// ErrNotFound is returned by CallTool when no descriptor matches name.
type ErrNotFound struct{ Name string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("broker: tool %q not found", e.Name) }

// ErrNameCollision is returned by Init when two servers expose a tool under
// the same name; the later registration is rejected, not overwritten.
type ErrNameCollision struct {
	Name             string
	ExistingServerID string
	NewServerID      string
}

func (e *ErrNameCollision) Error() string {
	return fmt.Sprintf("broker: tool name %q already registered by server %q, rejecting duplicate from %q",
		e.Name, e.ExistingServerID, e.NewServerID)
}

// Transport is the subset of *mcp.Transport the broker needs. Declaring it
// here (rather than depending on the concrete type) lets tests — in this
// package and in callers that assemble a Broker for an integration test —
// substitute a fake without spinning up a real MCP server.
type Transport interface {
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) ([]mcp.ToolInfo, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, bool, error)
	Disconnect()
}

type serverEntry struct {
	transport Transport
	cfg       mcp.ServerConfig
}

// Broker is the process-global, multi-server tool registry. It is
// constructed once, populated by Init, and mutated only through Reconnect
// and Shutdown — both of which the caller must serialize with any
// concurrent Init.
type Broker struct {
	hs *mcp.HandshakeChannel

	// newTransport is a seam for tests; production code always leaves it at
	// its default, which builds a real *mcp.Transport.
	newTransport func(mcp.ServerConfig, *mcp.HandshakeChannel) Transport

	mu       sync.RWMutex
	servers  map[string]*serverEntry
	registry []ToolDescriptor
}

// New creates an empty Broker. hs is shared across all HTTP transports with
// oauth/oauth_browser auth so concurrent OAuth bootstraps are serialized.
func New(hs *mcp.HandshakeChannel) *Broker {
	return &Broker{
		hs:      hs,
		servers: make(map[string]*serverEntry),
		newTransport: func(cfg mcp.ServerConfig, hs *mcp.HandshakeChannel) Transport {
			return mcp.NewTransport(cfg, hs)
		},
	}
}

// SetTransportFactory overrides how the broker constructs a server's
// transport. It exists for integration tests outside this package that need
// to drive a real Broker against a fake MCP server without a network.
func (b *Broker) SetTransportFactory(f func(mcp.ServerConfig, *mcp.HandshakeChannel) Transport) {
	b.newTransport = f
}

// Init connects to every configured server, lists its tools, and appends
// them to the registry with server_id attached. Connect failures are
// logged and skipped — the broker remains usable with the surviving
// servers. A ListTools failure immediately after connecting triggers
// exactly one Reconnect attempt before the server is dropped.
func (b *Broker) Init(ctx context.Context, configs map[string]mcp.ServerConfig) []error {
	var errs []error
	for id, cfg := range configs {
		if err := b.connectAndRegister(ctx, id, cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (b *Broker) connectAndRegister(ctx context.Context, id string, cfg mcp.ServerConfig) error {
	t := b.newTransport(cfg, b.hs)
	if err := t.Connect(ctx); err != nil {
		log.Printf("[Broker] connect failed for %q: %v", id, err)
		return fmt.Errorf("server %q: connect: %w", id, err)
	}

	tools, err := t.ListTools(ctx)
	if err != nil {
		log.Printf("[Broker] list tools failed for %q, attempting one reconnect: %v", id, err)
		t.Disconnect()
		t = b.newTransport(cfg, b.hs)
		if err := t.Connect(ctx); err != nil {
			return fmt.Errorf("server %q: reconnect: %w", id, err)
		}
		tools, err = t.ListTools(ctx)
		if err != nil {
			t.Disconnect()
			return fmt.Errorf("server %q: list tools after reconnect: %w", id, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.servers[id] = &serverEntry{transport: t, cfg: cfg}
	var collisions []error
	for _, ti := range tools {
		desc := ToolDescriptor{
			Name:        ti.Name,
			Description: ti.Description,
			InputSchema: ti.InputSchema,
			ServerID:    id,
			Transport:   string(cfg.Type),
		}
		if existing := b.findLocked(desc.Name); existing != nil {
			collErr := &ErrNameCollision{Name: desc.Name, ExistingServerID: existing.ServerID, NewServerID: id}
			log.Printf("[Broker] %v", collErr)
			collisions = append(collisions, collErr)
			continue
		}
		b.registry = append(b.registry, desc)
	}
	return errors.Join(collisions...)
}

func (b *Broker) findLocked(name string) *ToolDescriptor {
	for i := range b.registry {
		if b.registry[i].Name == name {
			return &b.registry[i]
		}
	}
	return nil
}

// ListTools returns a JSON-serializable snapshot of the registry: no
// session/transport references, safe to hand to the HTTP front door as-is.
func (b *Broker) ListTools() []ToolDescriptor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ToolDescriptor, len(b.registry))
	copy(out, b.registry)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CallTool finds the descriptor by name and delegates to its owning
// server's transport. Tool failures (the server itself reported an error)
// and transport errors during the call are returned as observation text,
// not as a Go error — only an unknown tool name is returned as an error.
func (b *Broker) CallTool(ctx context.Context, name string, args map[string]any) (ToolCallResult, error) {
	b.mu.RLock()
	desc := b.findLocked(name)
	var entry *serverEntry
	if desc != nil {
		entry = b.servers[desc.ServerID]
	}
	b.mu.RUnlock()

	if desc == nil || entry == nil {
		return ToolCallResult{}, &ErrNotFound{Name: name}
	}

	callCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
	defer cancel()

	text, isError, err := entry.transport.CallTool(callCtx, name, args)
	if err != nil {
		return ToolCallResult{Text: fmt.Sprintf("tool %q failed: %v", name, err)}, nil
	}
	if isError {
		return ToolCallResult{Text: text}, nil
	}
	return ToolCallResult{Text: text}, nil
}

// Reconnect idempotently tears down the existing transport for server_id,
// builds a fresh one from the stored config, reconnects, and re-registers
// its tools in place — preserving every tool name the server previously
// owned as long as the server still reports it.
func (b *Broker) Reconnect(ctx context.Context, serverID string) error {
	b.mu.Lock()
	entry, ok := b.servers[serverID]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("broker: unknown server %q", serverID)
	}
	cfg := entry.cfg
	oldTransport := entry.transport
	b.mu.Unlock()

	oldTransport.Disconnect()

	fresh := b.newTransport(cfg, b.hs)
	if err := fresh.Connect(ctx); err != nil {
		return fmt.Errorf("broker: reconnect %q: %w", serverID, err)
	}
	tools, err := fresh.ListTools(ctx)
	if err != nil {
		fresh.Disconnect()
		return fmt.Errorf("broker: reconnect %q: list tools: %w", serverID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.servers[serverID] = &serverEntry{transport: fresh, cfg: cfg}

	kept := b.registry[:0]
	for _, d := range b.registry {
		if d.ServerID != serverID {
			kept = append(kept, d)
		}
	}
	b.registry = kept
	for _, ti := range tools {
		b.registry = append(b.registry, ToolDescriptor{
			Name:        ti.Name,
			Description: ti.Description,
			InputSchema: ti.InputSchema,
			ServerID:    serverID,
			Transport:   string(cfg.Type),
		})
	}
	return nil
}

// Shutdown disconnects every server (best-effort; errors are logged but do
// not abort shutdown) and clears the registry. Safe to call once; a second
// call is a no-op since Disconnect on each transport is itself idempotent.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	servers := b.servers
	b.servers = make(map[string]*serverEntry)
	b.registry = nil
	b.mu.Unlock()

	for id, entry := range servers {
		log.Printf("[Broker] disconnecting %q", id)
		entry.transport.Disconnect()
	}
}
