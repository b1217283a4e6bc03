package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/agentcore/runtime/internal/agentsvc"
	"github.com/agentcore/runtime/internal/broker"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/mcp"
	"github.com/agentcore/runtime/internal/planner"
	"github.com/agentcore/runtime/internal/prompt"
	"github.com/agentcore/runtime/internal/web"
)

func main() {
	config.LoadEnv()

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║         agentcore runtime             ║")
	fmt.Println("╚══════════════════════════════════════╝")

	serverConfigPath := os.Getenv("MCP_CONFIG")
	if serverConfigPath != "" {
		if _, err := os.Stat(serverConfigPath); err != nil {
			log.Printf("[Startup] MCP_CONFIG=%q not found, starting with no tool servers", serverConfigPath)
			serverConfigPath = ""
		}
	}

	rt, err := config.LoadRuntimeConfig(serverConfigPath)
	if err != nil {
		log.Fatalf("[Startup] %v", err)
	}
	fmt.Printf("🤖 LLM provider: %s\n", os.Getenv("LLM_PROVIDER"))

	hs := mcp.NewHandshakeChannel()
	b := broker.New(hs)
	if errs := b.Init(context.Background(), rt.Servers); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("⚠️  MCP server init: %v", e)
		}
	}
	fmt.Printf("🔌 MCP: %d tool(s) registered across %d server(s)\n", len(b.ListTools()), len(rt.Servers))
	defer b.Shutdown()

	p := planner.New(rt.LLM, prompt.Default)
	service := agentsvc.New(p, b, rt.LLM, prompt.Default)

	server := web.NewServer(web.Deps{
		BearerToken: rt.BearerToken,
		LLM:         rt.LLM,
		Broker:      b,
		Service:     service,
		Handshake:   hs,
	})

	if err := server.Start(); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
}
