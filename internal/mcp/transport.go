package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	sdk_client "github.com/mark3labs/mcp-go/client"
	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/oauth2"
)

// obtainOAuthToken runs the interactive authorization-code flow: it logs the
// authorization URL for the operator to open, then blocks on the shared
// HandshakeChannel until the HTTP front door's /mcp/oauth/callback handler
// delivers the resulting (code, state). No deadline is applied — OAuth
// handshakes are explicitly exempt from the connect timeout.
func (t *Transport) obtainOAuthToken(ctx context.Context) (string, error) {
	auth := t.cfg.Auth
	if t.hs == nil {
		return "", fmt.Errorf("oauth requires a handshake channel")
	}
	if err := t.hs.Begin(); err != nil {
		return "", err
	}
	defer t.hs.End()

	conf := &oauth2.Config{
		ClientID:     auth.ClientID,
		ClientSecret: auth.ClientSecret,
		RedirectURL:  auth.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  auth.AuthURL,
			TokenURL: auth.TokenURL,
		},
	}
	if auth.Scope != "" {
		conf.Scopes = []string{auth.Scope}
	}

	state := t.cfg.ServerID
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
	log.Printf("[MCP] OAuth authorization required for %q: %s", t.cfg.ServerID, authURL)

	ac, err := t.hs.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("waiting for authorization code: %w", err)
	}

	tok, err := conf.Exchange(ctx, ac.Code)
	if err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok.AccessToken, nil
}

// connectTimeout bounds a single non-interactive HTTP or stdio connect
// attempt (bearer/api_key HTTP auth, and every stdio attempt).
const connectTimeout = 30 * time.Second

// ToolInfo captures the metadata of a single tool exposed by an MCP server,
// ahead of the server_id/transport fields the Tool Broker attaches to turn
// it into a ToolDescriptor.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Transport owns one MCP server connection end-to-end: open, handshake,
// park until disconnected. A single goroutine — the "service task" — does
// all three and is the only one that opens and closes the client.
// ListTools and CallTool do not forward into that goroutine: they fetch the
// live client under mu and call it directly on the caller's goroutine, so
// concurrent calls to the same server are not serialized by the Transport.
type Transport struct {
	cfg ServerConfig
	hs  *HandshakeChannel // only consulted for oauth/oauth_browser auth

	mu         sync.Mutex
	client     sdk_client.MCPClient
	cancel     context.CancelFunc
	done       chan struct{}
	connectErr error
	connected  bool
}

// NewTransport creates an unconnected Transport for cfg. hs may be nil
// unless cfg is an HTTP transport with oauth/oauth_browser auth.
func NewTransport(cfg ServerConfig, hs *HandshakeChannel) *Transport {
	return &Transport{cfg: cfg, hs: hs}
}

// Connect opens the transport, performs the MCP initialize handshake, and
// returns once a ready signal arrives (or ctx is cancelled first). Once
// Connect returns nil, the service goroutine parks until Disconnect.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return nil // already connected or connecting; Connect is not additive
	}
	ownerCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	ready := make(chan struct{})
	go t.service(ownerCtx, ctx, ready)

	select {
	case <-ready:
	case <-ctx.Done():
		t.Disconnect()
		return ctx.Err()
	}

	t.mu.Lock()
	err := t.connectErr
	t.mu.Unlock()
	if err != nil {
		t.Disconnect()
	}
	return err
}

// service is the long-lived owning goroutine: open+handshake, signal ready,
// then park on ownerCtx until Disconnect cancels it.
func (t *Transport) service(ownerCtx, connectCtx context.Context, ready chan struct{}) {
	defer close(t.done)

	cli, err := t.open(connectCtx)

	t.mu.Lock()
	t.client = cli
	t.connectErr = err
	t.connected = err == nil
	t.mu.Unlock()
	close(ready)

	if err != nil {
		return
	}
	<-ownerCtx.Done()
	_ = cli.Close()
}

// open dispatches to the transport-specific connect+handshake routine.
func (t *Transport) open(ctx context.Context) (sdk_client.MCPClient, error) {
	switch t.cfg.Type {
	case TransportStdio:
		return t.openStdio(ctx)
	case TransportHTTP:
		return t.openHTTP(ctx)
	default:
		return nil, fmt.Errorf("mcp: unknown transport %q for server %q", t.cfg.Type, t.cfg.ServerID)
	}
}

// openStdio runs the static security pre-flight scan against the server's
// launch script (if it references one), then retries the connect+handshake
// once on timeout, each attempt bounded by connectTimeout, per the Tool
// Transport stdio retry policy. A critical scan finding aborts the connect
// before any process is spawned; warn findings are logged but do not block.
func (t *Transport) openStdio(ctx context.Context) (sdk_client.MCPClient, error) {
	if script := findPyScript(t.cfg); script != "" {
		findings, err := ScanScript(script)
		if err != nil {
			return nil, fmt.Errorf("mcp: security scan %q: %w", script, err)
		}
		LogFindings(t.cfg.ServerID, findings)
		if HasCritical(findings) {
			return nil, fmt.Errorf("mcp: server %q: launch script %q failed security pre-flight", t.cfg.ServerID, script)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		cli, err := t.connectStdioOnce(attemptCtx)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil {
			return cli, nil
		}
		lastErr = err
		if !timedOut {
			break
		}
		if attempt == 1 {
			log.Printf("[MCP] stdio handshake attempt 1 failed for %q, retrying: %v", t.cfg.ServerID, err)
		}
	}
	return nil, fmt.Errorf("mcp: stdio server %q: %w", t.cfg.ServerID, lastErr)
}

func (t *Transport) connectStdioOnce(ctx context.Context) (sdk_client.MCPClient, error) {
	cli, err := sdk_client.NewStdioMCPClient(t.cfg.Command, t.cfg.Env, t.cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("start stdio server: %w", err)
	}
	if err := t.handshake(ctx, cli); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return cli, nil
}

// openHTTP builds the streamable-HTTP client with the auth strategy named
// by cfg.Auth.Type, enforcing a connect timeout only for non-interactive
// auth (bearer/api_key) or no auth; OAuth gets no deadline since the flow
// may require a human in the loop.
func (t *Transport) openHTTP(ctx context.Context) (sdk_client.MCPClient, error) {
	auth := t.cfg.Auth

	if auth.IsOAuth() {
		token, err := t.obtainOAuthToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("mcp: oauth for %q: %w", t.cfg.ServerID, err)
		}
		return t.connectHTTPOnce(ctx, map[string]string{"Authorization": "Bearer " + token})
	}

	connCtx := ctx
	if auth.IsStaticToken() {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		return t.connectHTTPOnce(connCtx, map[string]string{"Authorization": "Bearer " + auth.Token})
	}

	var cancel context.CancelFunc
	connCtx, cancel = context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return t.connectHTTPOnce(connCtx, nil)
}

func (t *Transport) connectHTTPOnce(ctx context.Context, headers map[string]string) (sdk_client.MCPClient, error) {
	opts := []sdk_client.StreamableHTTPCOption{}
	if len(headers) > 0 {
		opts = append(opts, sdk_client.WithHTTPHeaders(headers))
	}
	cli, err := sdk_client.NewStreamableHttpClient(t.cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	if err := t.handshake(ctx, cli); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return cli, nil
}

func (t *Transport) handshake(ctx context.Context, cli sdk_client.MCPClient) error {
	_, err := cli.Initialize(ctx, sdk_mcp.InitializeRequest{
		Params: sdk_mcp.InitializeParams{
			ProtocolVersion: sdk_mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: sdk_mcp.Implementation{
				Name:    "agentcore",
				Version: "0.1.0",
			},
		},
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// ListTools returns the tool metadata exposed by the connected server.
func (t *Transport) ListTools(ctx context.Context) ([]ToolInfo, error) {
	cli, err := t.liveClient()
	if err != nil {
		return nil, err
	}
	result, err := cli.ListTools(ctx, sdk_mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools %q: %w", t.cfg.ServerID, err)
	}
	tools := make([]ToolInfo, 0, len(result.Tools))
	for _, tl := range result.Tools {
		schema, err := json.Marshal(tl.InputSchema)
		if err != nil {
			schema = json.RawMessage("{}")
		}
		tools = append(tools, ToolInfo{Name: tl.Name, Description: tl.Description, InputSchema: schema})
	}
	return tools, nil
}

// CallTool invokes a tool on the connected server. If the response content
// is a list of parts, only the first part's text is returned (its string
// form if it isn't TextContent); an empty content list returns "".
func (t *Transport) CallTool(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	cli, err := t.liveClient()
	if err != nil {
		return "", false, err
	}
	req := sdk_mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := cli.CallTool(ctx, req)
	if err != nil {
		return "", false, fmt.Errorf("mcp: call tool %q on %q: %w", name, t.cfg.ServerID, err)
	}
	return firstContentText(result.Content), result.IsError, nil
}

// firstContentText returns the text of the first content part only, per
// the Tool Transport result-extraction rule: a list of parts surfaces just
// its first element's text (or its string form for non-text parts); an
// empty list surfaces "".
func firstContentText(content []sdk_mcp.Content) string {
	if len(content) == 0 {
		return ""
	}
	if tc, ok := content[0].(sdk_mcp.TextContent); ok {
		return tc.Text
	}
	return fmt.Sprintf("%v", content[0])
}

func (t *Transport) liveClient() (sdk_client.MCPClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected || t.client == nil {
		return nil, fmt.Errorf("mcp: transport %q not connected", t.cfg.ServerID)
	}
	return t.client, nil
}

// Connected reports whether the transport completed its handshake and has
// not since been disconnected.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Disconnect cancels the owning goroutine's scope and waits for it to
// unwind. It is idempotent: a second call observes cancel == nil and
// returns immediately.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.connected = false
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}
