package mcp

import (
	"encoding/json"
	"fmt"
	"os"
)

// TransportKind is the wire-level transport a server config selects.
type TransportKind string

const (
	TransportHTTP  TransportKind = "http"
	TransportStdio TransportKind = "stdio"
)

// AuthKind identifies the authentication strategy for an HTTP transport.
type AuthKind string

const (
	AuthNone          AuthKind = ""
	AuthOAuth         AuthKind = "oauth"
	AuthOAuthBrowser  AuthKind = "oauth_browser"
	AuthBearer        AuthKind = "bearer"
	AuthAPIKey        AuthKind = "api_key"
)

// AuthConfig describes how an HTTP transport authenticates to its server.
// The first five fields are the literal configuration shape; ClientID,
// ClientSecret, AuthURL, and TokenURL are a domain enrichment needed to
// drive a real oauth2.Config for the oauth/oauth_browser auth types.
type AuthConfig struct {
	Type        AuthKind `json:"type,omitempty"`
	ClientName  string   `json:"client_name,omitempty"`
	RedirectURI string   `json:"redirect_uri,omitempty"`
	Scope       string   `json:"scope,omitempty"`
	Token       string   `json:"token,omitempty"`

	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	AuthURL      string `json:"auth_url,omitempty"`
	TokenURL     string `json:"token_url,omitempty"`
}

// IsOAuth reports whether a is an interactive OAuth auth type.
func (a *AuthConfig) IsOAuth() bool {
	return a != nil && (a.Type == AuthOAuth || a.Type == AuthOAuthBrowser)
}

// IsStaticToken reports whether a carries a pre-shared bearer/api_key token.
func (a *AuthConfig) IsStaticToken() bool {
	return a != nil && (a.Type == AuthBearer || a.Type == AuthAPIKey) && a.Token != ""
}

// ServerConfig describes a single MCP server connection, keyed by ServerID
// in the startup configuration map.
type ServerConfig struct {
	ServerID string // derived from the map key, not a JSON field

	Type TransportKind `json:"type"`

	// HTTP
	URL  string      `json:"url,omitempty"`
	Auth *AuthConfig `json:"auth,omitempty"`

	// Stdio
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Env     []string `json:"env,omitempty"`
	Cwd     string   `json:"cwd,omitempty"`
}

// serverConfigFile mirrors the top-level shape of the startup server-config
// document: a map of server_id to its config. The on-disk format is JSON —
// file format choice is explicitly out of scope, but a concrete shape is
// needed to drive cmd/agentcored.
type serverConfigFile struct {
	Servers map[string]ServerConfig `json:"servers"`
}

// LoadServerConfigs reads and parses the startup server-config document from
// path. ServerID is populated from each map key.
func LoadServerConfigs(path string) (map[string]ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mcp: read config %q: %w", path, err)
	}
	var file serverConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("mcp: parse config %q: %w", path, err)
	}
	if file.Servers == nil {
		return map[string]ServerConfig{}, nil
	}
	for id, cfg := range file.Servers {
		cfg.ServerID = id
		file.Servers[id] = cfg
	}
	return file.Servers, nil
}

// findPyScript returns the first .py file referenced in a stdio ServerConfig,
// checking the command itself and then the argument list.
func findPyScript(cfg ServerConfig) string {
	if len(cfg.Command) > 3 && cfg.Command[len(cfg.Command)-3:] == ".py" {
		return cfg.Command
	}
	for _, arg := range cfg.Args {
		if len(arg) > 3 && arg[len(arg)-3:] == ".py" {
			return arg
		}
	}
	return ""
}
