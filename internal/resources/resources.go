package resources

import (
	"context"
	_ "embed"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// SyntaxResourceURI is the URI under which the syntax reference is
// published. Kept stable because clients hardcode it.
const SyntaxResourceURI = "file://resource/syntax_1c.txt"

//go:embed syntax_1c.txt
var syntaxReference string

// RegisterResources registers the static resources with the MCP server
func RegisterResources(s *mcpserver.MCPServer) error {
	syntaxResource := mcp.NewResource(
		SyntaxResourceURI,
		"1C Syntax Quick Reference",
		mcp.WithResourceDescription("Quick reference for 1C:Enterprise metadata types, predefined data and query language"),
		mcp.WithMIMEType("text/plain"),
	)

	s.AddResource(syntaxResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			&mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "text/plain",
				Text:     syntaxReference,
			},
		}, nil
	})

	return nil
}
