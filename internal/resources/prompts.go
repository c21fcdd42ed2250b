package resources

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RegisterPrompts registers the prompts with the MCP server
func RegisterPrompts(s *mcpserver.MCPServer) error {
	explorePrompt := mcp.NewPrompt("explore_configuration",
		mcp.WithPromptDescription("Guide for exploring the metadata of a 1C configuration step by step"),
		mcp.WithArgument("area",
			mcp.ArgumentDescription("Area of interest, e.g. 'sales', 'inventory', 'accounting'. Optional."),
		),
	)

	s.AddPrompt(explorePrompt, func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		area := request.Params.Arguments["area"]

		instruction := `Explore the 1C configuration exposed by this server.

1. Start broad: call list_metadata_objects with metaType "Catalogs" and
   then "Documents" to see what the configuration contains. Use nameMask
   to narrow long lists and maxItems to keep responses small.
2. For each object of interest, call get_metadata_structure to see its
   attributes and tabular sections.
3. For catalogs and charts of accounts, call list_predefined_data to
   discover fixed items, then get_predefined_data for details.
4. Consult the resource file://resource/syntax_1c.txt for metadata type
   names and query language syntax.

Object and attribute names are usually Russian. Report findings with
both the original name and an English gloss.`

		if area != "" {
			instruction += fmt.Sprintf("\n\nFocus the exploration on objects related to: %s.", area)
		}

		return mcp.NewGetPromptResult(
			"Explore the 1C configuration",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(instruction)),
			},
		), nil
	})

	return nil
}
