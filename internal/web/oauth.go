package web

import (
	"net/http"

	"github.com/agentcore/runtime/internal/mcp"
)

// OAuthCallbackHandler serves GET /mcp/oauth/callback: no auth of its own
// (the code itself is the secret), enqueues the delivered code onto the
// shared Handshake Channel.
type OAuthCallbackHandler struct {
	hs *mcp.HandshakeChannel
}

func NewOAuthCallbackHandler(hs *mcp.HandshakeChannel) *OAuthCallbackHandler {
	return &OAuthCallbackHandler{hs: hs}
}

func (h *OAuthCallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	state := r.URL.Query().Get("state")

	h.hs.Deliver(mcp.AuthCode{Code: code, State: state})

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("Auth received, you may close this window."))
}
