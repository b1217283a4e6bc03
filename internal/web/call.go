package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentcore/runtime/internal/llm"
)

const oneShotTimeout = 180 * time.Second

// CallHandler serves POST /call and WS /ws/call: a plain LLM call with no
// tool access at all — the thinnest endpoint in the table.
type CallHandler struct {
	token string
	llm   llm.Port
}

func NewCallHandler(token string, port llm.Port) *CallHandler {
	return &CallHandler{token: token, llm: port}
}

type callRequest struct {
	Prompt string `json:"prompt"`
}

type callResponse struct {
	Result string `json:"result"`
	Trace  any    `json:"trace"`
	Plan   any    `json:"plan"`
}

func (h *CallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if !checkBearer(w, r, h.token) {
		return
	}

	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), oneShotTimeout)
	defer cancel()

	result, err := h.llm.Call(ctx, req.Prompt, "", llm.CallOptions{})
	if err != nil {
		if ctx.Err() != nil {
			http.Error(w, "Operation timed out", http.StatusInternalServerError)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(callResponse{Result: result})
}

// ServeWS streams the LLM's token-by-token response, ending with a terminal
// {complete,result} frame.
func (h *CallHandler) ServeWS(conn wsConn) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}
	prompt := string(msg)

	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()

	chunks := h.llm.CallStream(ctx, prompt, "", llm.CallOptions{})
	for chunk := range chunks {
		switch chunk.Kind {
		case llm.ChunkText:
			conn.WriteJSON(map[string]any{"text": chunk.Text})
		case llm.ChunkComplete:
			conn.WriteJSON(map[string]any{"complete": true, "result": chunk.Result})
			return
		case llm.ChunkError:
			conn.WriteJSON(map[string]any{"error": chunk.Err.Error()})
			return
		}
	}
}
