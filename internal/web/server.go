// Package web is the thin HTTP/WebSocket edge described by the external
// interfaces table: bearer-token auth, one-shot and streaming endpoints
// over the Agent Service, Tool Broker, and LLM Port. Routing and transport
// framing are intentionally minimal — the module's external collaborators
// are expected to front this with a real reverse proxy in production.
package web

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentcore/runtime/internal/agentsvc"
	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/llm"
	"github.com/agentcore/runtime/internal/mcp"
)

// Deps bundles everything the edge layer needs to construct its handlers.
type Deps struct {
	BearerToken string
	LLM         llm.Port
	Broker      *broker.Broker
	Service     *agentsvc.Service
	Handshake   *mcp.HandshakeChannel
}

// Server wires the §6 endpoint table onto an http.ServeMux.
type Server struct {
	mux *http.ServeMux

	call    *CallHandler
	callMCP *CallMCPHandler
	agent   *AgentHandler
	token   string
}

// NewServer builds a Server from deps and registers every route.
func NewServer(deps Deps) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		call:    NewCallHandler(deps.BearerToken, deps.LLM),
		callMCP: NewCallMCPHandler(deps.BearerToken, deps.Service, deps.Broker),
		agent:   NewAgentHandler(deps.BearerToken, deps.Service),
		token:   deps.BearerToken,
	}

	health := NewHealthHandler(deps.BearerToken, func() bool {
		return deps.Broker != nil && len(deps.Broker.ListTools()) > 0
	})
	tools := NewToolsHandler(deps.BearerToken, deps.Broker)
	oauthCallback := NewOAuthCallbackHandler(deps.Handshake)

	s.mux.HandleFunc("/health", health.ServeHTTP)
	s.mux.HandleFunc("/tools", tools.ServeHTTP)
	s.mux.HandleFunc("/call", s.call.ServeHTTP)
	s.mux.HandleFunc("/call_mcp", s.callMCP.ServeHTTP)
	s.mux.HandleFunc("/agent", s.agent.ServeHTTP)
	s.mux.HandleFunc("/mcp/oauth/callback", oauthCallback.ServeHTTP)

	s.mux.HandleFunc("/ws/call", s.handleWSCall)
	s.mux.HandleFunc("/ws/call_mcp", s.handleWSCallMCP)
	s.mux.HandleFunc("/ws/agent", s.handleWSAgent)

	return s
}

func (s *Server) handleWSCall(w http.ResponseWriter, r *http.Request) {
	conn := upgradeWithAuth(w, r, s.token)
	if conn == nil {
		return
	}
	defer conn.Close()
	s.call.ServeWS(conn)
}

func (s *Server) handleWSCallMCP(w http.ResponseWriter, r *http.Request) {
	conn := upgradeWithAuth(w, r, s.token)
	if conn == nil {
		return
	}
	defer conn.Close()
	s.callMCP.ServeWS(conn)
}

func (s *Server) handleWSAgent(w http.ResponseWriter, r *http.Request) {
	conn := upgradeWithAuth(w, r, s.token)
	if conn == nil {
		return
	}
	defer conn.Close()
	s.agent.ServeWS(conn)
}

// Start begins listening with graceful shutdown on SIGINT/SIGTERM.
func (s *Server) Start() error {
	port := os.Getenv("WEB_PORT")
	if port == "" {
		port = "8080"
	}
	host := os.Getenv("WEB_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	addr := host + ":" + port

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("[Web] received signal %v, shutting down", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Web] shutdown error: %v", err)
		}
	}()

	log.Printf("[Web] listening on http://%s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		log.Println("[Web] stopped gracefully")
		return nil
	}
	return err
}
