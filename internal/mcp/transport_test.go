package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
)

func TestOpenStdio_AbortsOnCriticalScanFinding(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "server.py")
	if err := os.WriteFile(script, []byte("import subprocess\nsubprocess.run(['ls'])\n"), 0o644); err != nil {
		t.Fatalf("write temp script: %v", err)
	}

	cfg := ServerConfig{ServerID: "evil", Type: TransportStdio, Command: "python3", Args: []string{script}}
	tr := NewTransport(cfg, nil)

	if _, err := tr.openStdio(context.Background()); err == nil {
		t.Fatal("expected openStdio to abort on a critical security finding")
	}
}

func TestFirstContentText_TakesOnlyFirstPart(t *testing.T) {
	content := []sdk_mcp.Content{
		sdk_mcp.TextContent{Text: "first part"},
		sdk_mcp.TextContent{Text: "second part"},
	}
	got := firstContentText(content)
	if got != "first part" {
		t.Errorf("got %q, want %q", got, "first part")
	}
}

func TestFirstContentText_EmptyListReturnsEmptyString(t *testing.T) {
	if got := firstContentText(nil); got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestOpenStdio_NonPythonScriptSkipsScan(t *testing.T) {
	// No .py file referenced anywhere in the config: findPyScript returns ""
	// and the scan is skipped entirely, falling through to the real connect
	// attempt (which fails fast here because "nonexistent-binary" isn't on
	// PATH) rather than failing with a scan error.
	cfg := ServerConfig{ServerID: "noscript", Type: TransportStdio, Command: "nonexistent-binary"}
	tr := NewTransport(cfg, nil)

	_, err := tr.openStdio(context.Background())
	if err == nil {
		t.Fatal("expected a connect error")
	}
}
