package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/agentcore/runtime/internal/agentsvc"
	"github.com/agentcore/runtime/internal/event"
	"github.com/agentcore/runtime/internal/session"
)

// agentMaxSteps bounds the full multi-step loop; spec leaves the exact
// figure to the implementation, "resources are exhausted" being the only
// named stopping condition beyond goal_reached.
const agentMaxSteps = 12

const agentTimeout = 180 * time.Second

// AgentHandler serves POST /agent and WS /ws/agent: the full plan/act/
// summarise loop, run to completion or max_steps.
type AgentHandler struct {
	token   string
	service *agentsvc.Service
}

func NewAgentHandler(token string, service *agentsvc.Service) *AgentHandler {
	return &AgentHandler{token: token, service: service}
}

type agentResponse struct {
	Result string               `json:"result"`
	Trace  []session.TraceEntry `json:"trace"`
}

func (h *AgentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), agentTimeout)
	defer cancel()

	sess := session.New(req.Prompt, agentMaxSteps)
	log.Printf("[Agent] run %s starting", sess.ID)
	result, trace := h.service.Run(ctx, sess, nil)
	if ctx.Err() != nil {
		http.Error(w, "Operation timed out", http.StatusInternalServerError)
		return
	}
	log.Printf("[Agent] run %s ended state=%s steps=%d", sess.ID, sess.State, sess.StepIndex)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agentResponse{Result: result, Trace: trace})
}

// ServeWS streams one JSON {event,data} frame per published AgentEvent,
// ending with a terminal {event:"final",result,trace} frame — or
// {event:"error",error} if the run ends in ERROR or times out. If the client
// hangs up mid-run, the in-flight run is cancelled and nothing further is
// sent.
func (h *AgentHandler) ServeWS(conn wsConn) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), agentTimeout)
	defer cancel()

	bus := event.New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range bus.Subscribe() {
			if conn.WriteJSON(map[string]any{"event": string(ev.Type), "data": ev.Data}) != nil {
				cancel()
				return
			}
		}
	}()

	sess := session.New(string(msg), agentMaxSteps)
	log.Printf("[Agent] ws run %s starting", sess.ID)
	result, trace := h.service.Run(ctx, sess, bus)
	bus.Close()
	<-done
	log.Printf("[Agent] ws run %s ended state=%s steps=%d", sess.ID, sess.State, sess.StepIndex)

	if ctx.Err() != nil {
		if ctx.Err() == context.DeadlineExceeded {
			conn.WriteJSON(map[string]any{"event": "error", "error": "Operation timed out"})
		}
		return
	}
	if sess.State == session.ERROR {
		conn.WriteJSON(map[string]any{"event": "error", "error": result})
		return
	}
	conn.WriteJSON(map[string]any{"event": "final", "result": result, "trace": trace})
}
