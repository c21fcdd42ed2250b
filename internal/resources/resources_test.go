package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

func newTestMCPServer(t *testing.T) *mcpserver.MCPServer {
	t.Helper()

	s := mcpserver.NewMCPServer("onecgate-test", "0.0.1",
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithPromptCapabilities(true),
	)
	if err := RegisterResources(s); err != nil {
		t.Fatalf("RegisterResources() error = %v", err)
	}
	if err := RegisterPrompts(s); err != nil {
		t.Fatalf("RegisterPrompts() error = %v", err)
	}
	return s
}

// handleMessage pushes a raw JSON-RPC message through the server and
// returns the marshalled response.
func handleMessage(t *testing.T, s *mcpserver.MCPServer, msg string) string {
	t.Helper()

	resp := s.HandleMessage(context.Background(), []byte(msg))
	if resp == nil {
		t.Fatal("HandleMessage() returned no response")
	}
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	if strings.Contains(string(out), `"error"`) {
		t.Fatalf("HandleMessage() returned error response: %s", out)
	}
	return string(out)
}

func TestSyntaxReferenceEmbedded(t *testing.T) {
	if syntaxReference == "" {
		t.Fatal("syntaxReference is empty")
	}
	for _, marker := range []string{"Catalogs", "Справочники", "ВЫБРАТЬ"} {
		if !strings.Contains(syntaxReference, marker) {
			t.Errorf("syntax reference missing %q", marker)
		}
	}
}

func TestReadSyntaxResource(t *testing.T) {
	s := newTestMCPServer(t)

	out := handleMessage(t, s, fmt.Sprintf(
		`{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":%q}}`,
		SyntaxResourceURI))

	if !strings.Contains(out, "Quick Reference") {
		t.Errorf("resources/read response missing reference content: %s", out[:200])
	}
	if !strings.Contains(out, "text/plain") {
		t.Error("resources/read response missing MIME type")
	}
}

func TestListResources(t *testing.T) {
	s := newTestMCPServer(t)

	out := handleMessage(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"resources/list","params":{}}`)

	if !strings.Contains(out, SyntaxResourceURI) {
		t.Errorf("resources/list response missing %q: %s", SyntaxResourceURI, out)
	}
}

func TestExploreConfigurationPrompt(t *testing.T) {
	s := newTestMCPServer(t)

	out := handleMessage(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"prompts/get","params":{"name":"explore_configuration"}}`)

	for _, tool := range []string{
		"list_metadata_objects",
		"get_metadata_structure",
		"list_predefined_data",
		"get_predefined_data",
	} {
		if !strings.Contains(out, tool) {
			t.Errorf("prompt is missing a mention of %q", tool)
		}
	}
	if !strings.Contains(out, SyntaxResourceURI) {
		t.Error("prompt does not point at the syntax resource")
	}
}

func TestExploreConfigurationPromptWithArea(t *testing.T) {
	s := newTestMCPServer(t)

	out := handleMessage(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"prompts/get","params":{"name":"explore_configuration","arguments":{"area":"sales"}}}`)

	if !strings.Contains(out, "related to: sales") {
		t.Error("prompt does not focus on the requested area")
	}
}
