package config

import (
	"fmt"
	"os"

	"github.com/agentcore/runtime/internal/llm"
	"github.com/agentcore/runtime/internal/llm/azure"
	"github.com/agentcore/runtime/internal/llm/openai"
	"github.com/agentcore/runtime/internal/mcp"
)

// ConfigError reports a startup configuration problem — missing provider,
// missing bearer token, or a malformed server-config file. Per the error
// taxonomy, this kind is always fatal: the process refuses to start rather
// than run in a partially-configured state.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// RuntimeConfig is everything cmd/agentcored needs to wire up a Service and
// its edge HTTP server.
type RuntimeConfig struct {
	BearerToken string
	LLM         llm.Port
	Servers     map[string]mcp.ServerConfig
}

// LoadRuntimeConfig reads LLM_PROVIDER, API_BEARER_TOKEN, provider
// credentials, and (if serverConfigPath is non-empty) the MCP server list,
// failing fast on any ConfigError.
func LoadRuntimeConfig(serverConfigPath string) (*RuntimeConfig, error) {
	token := os.Getenv("API_BEARER_TOKEN")
	if token == "" {
		return nil, &ConfigError{Field: "API_BEARER_TOKEN", Msg: "required"}
	}

	port, err := buildLLMPort()
	if err != nil {
		return nil, err
	}

	servers := map[string]mcp.ServerConfig{}
	if serverConfigPath != "" {
		servers, err = mcp.LoadServerConfigs(serverConfigPath)
		if err != nil {
			return nil, &ConfigError{Field: "server config", Msg: err.Error()}
		}
	}

	return &RuntimeConfig{BearerToken: token, LLM: port, Servers: servers}, nil
}

func buildLLMPort() (llm.Port, error) {
	provider := os.Getenv("LLM_PROVIDER")
	switch provider {
	case "OPENAI":
		cfg, err := openai.NewConfigFromEnv()
		if err != nil {
			return nil, &ConfigError{Field: "LLM_PROVIDER=OPENAI", Msg: err.Error()}
		}
		client, err := openai.NewClient(cfg)
		if err != nil {
			return nil, &ConfigError{Field: "LLM_PROVIDER=OPENAI", Msg: err.Error()}
		}
		return client, nil
	case "AZURE_OPENAI":
		cfg := &azure.Config{
			APIKey:         os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:       os.Getenv("AZURE_OPENAI_ENDPOINT"),
			APIVersion:     getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-06-01"),
			DeploymentName: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		}
		client, err := azure.NewClient(cfg)
		if err != nil {
			return nil, &ConfigError{Field: "LLM_PROVIDER=AZURE_OPENAI", Msg: err.Error()}
		}
		return client, nil
	case "":
		return nil, &ConfigError{Field: "LLM_PROVIDER", Msg: "required, must be OPENAI or AZURE_OPENAI"}
	default:
		return nil, &ConfigError{Field: "LLM_PROVIDER", Msg: fmt.Sprintf("unknown provider %q", provider)}
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
