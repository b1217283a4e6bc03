package web

import (
	"encoding/json"
	"net/http"

	"github.com/agentcore/runtime/internal/broker"
)

// ToolsHandler serves GET /tools: the broker's registry snapshot, with no
// session state attached.
type ToolsHandler struct {
	token  string
	broker *broker.Broker
}

func NewToolsHandler(token string, b *broker.Broker) *ToolsHandler {
	return &ToolsHandler{token: token, broker: b}
}

func (h *ToolsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if !checkBearer(w, r, h.token) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.broker.ListTools())
}
