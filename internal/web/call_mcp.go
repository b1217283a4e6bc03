package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/agentcore/runtime/internal/agentsvc"
	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/session"
)

// callMCPMaxSteps bounds a single-tool MCP call to exactly one plan/act/
// summarise cycle — "MCP single-tool call" in the latency budget, as
// opposed to /agent's open-ended loop.
const callMCPMaxSteps = 1

// CallMCPHandler serves POST /call_mcp and WS /ws/call_mcp: one MCP tool
// invocation chosen by the planner, summarised, and returned with its
// trace. 503s if the broker has no tools registered.
type CallMCPHandler struct {
	token   string
	service *agentsvc.Service
	broker  *broker.Broker
}

func NewCallMCPHandler(token string, service *agentsvc.Service, b *broker.Broker) *CallMCPHandler {
	return &CallMCPHandler{token: token, service: service, broker: b}
}

func (h *CallMCPHandler) brokerReady() bool {
	return h.broker != nil && len(h.broker.ListTools()) > 0
}

type callMCPResponse struct {
	Result string               `json:"result"`
	Trace  []session.TraceEntry `json:"trace"`
}

func (h *CallMCPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if !checkBearer(w, r, h.token) {
		return
	}
	if !h.brokerReady() {
		http.Error(w, "MCP broker not ready", http.StatusServiceUnavailable)
		return
	}

	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), oneShotTimeout)
	defer cancel()

	sess := session.New(req.Prompt, callMCPMaxSteps)
	result, trace := h.service.Run(ctx, sess, nil)
	if ctx.Err() != nil {
		http.Error(w, "Operation timed out", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(callMCPResponse{Result: result, Trace: trace})
}

// ServeWS runs the same one-shot call and sends a single {result,trace}
// frame before closing.
func (h *CallMCPHandler) ServeWS(conn wsConn) {
	if !h.brokerReady() {
		conn.WriteJSON(map[string]any{"error": "MCP broker not ready"})
		return
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()

	sess := session.New(string(msg), callMCPMaxSteps)
	result, trace := h.service.Run(ctx, sess, nil)
	if ctx.Err() != nil {
		conn.WriteJSON(map[string]any{"error": "Operation timed out"})
		return
	}
	conn.WriteJSON(callMCPResponse{Result: result, Trace: trace})
}
