package metadata_tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/onecgate/onecgate/internal/instrumentation"
	"github.com/onecgate/onecgate/internal/onec"
	"github.com/onecgate/onecgate/internal/server"
	"github.com/onecgate/onecgate/internal/tools/common"
)

// Back-end RPC method names, identical to the tool names.
const (
	methodListMetadataObjects  = "list_metadata_objects"
	methodGetMetadataStructure = "get_metadata_structure"
	methodListPredefinedData   = "list_predefined_data"
	methodGetPredefinedData    = "get_predefined_data"
)

// RegisterMetadataTools registers all metadata tools with the MCP server
func RegisterMetadataTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	registerListMetadataObjects(s, sc)
	registerGetMetadataStructure(s, sc)
	registerListPredefinedData(s, sc)
	registerGetPredefinedData(s, sc)
	return nil
}

func registerListMetadataObjects(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool(methodListMetadataObjects,
		mcp.WithDescription("List metadata objects of a given type from the 1C configuration"),
		mcp.WithString("metaType",
			mcp.Required(),
			mcp.Description("Metadata type, e.g. 'Catalogs', 'Documents', 'InformationRegisters', 'Enums'"),
		),
		mcp.WithString("nameMask",
			mcp.Description("Optional substring filter applied to object names"),
		),
		mcp.WithNumber("maxItems",
			mcp.Description("Maximum number of objects to return"),
		),
	)

	s.AddTool(tool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler(methodListMetadataObjects, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			metaType, ok := args["metaType"].(string)
			if !ok || metaType == "" {
				return mcp.NewToolResultError("metaType is required"), nil
			}

			params := map[string]interface{}{
				"metaType": metaType,
			}
			if mask, ok := args["nameMask"].(string); ok && mask != "" {
				params["nameMask"] = mask
			}
			if max, ok := args["maxItems"].(float64); ok && max > 0 {
				params["maxItems"] = int(max)
			}

			return callBackend(ctx, sc, methodListMetadataObjects, params)
		})))
}

func registerGetMetadataStructure(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool(methodGetMetadataStructure,
		mcp.WithDescription("Get the attribute and tabular-section structure of a metadata object"),
		mcp.WithString("metaType",
			mcp.Required(),
			mcp.Description("Metadata type of the object, e.g. 'Catalogs' or 'Documents'"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the metadata object"),
		),
	)

	s.AddTool(tool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler(methodGetMetadataStructure, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			metaType, ok := args["metaType"].(string)
			if !ok || metaType == "" {
				return mcp.NewToolResultError("metaType is required"), nil
			}
			name, ok := args["name"].(string)
			if !ok || name == "" {
				return mcp.NewToolResultError("name is required"), nil
			}

			return callBackend(ctx, sc, methodGetMetadataStructure, map[string]interface{}{
				"metaType": metaType,
				"name":     name,
			})
		})))
}

func registerListPredefinedData(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool(methodListPredefinedData,
		mcp.WithDescription("List predefined items of a metadata object (catalogs, charts of accounts and similar)"),
		mcp.WithString("metaType",
			mcp.Required(),
			mcp.Description("Metadata type, e.g. 'Catalogs', 'ChartsOfAccounts', 'ChartsOfCharacteristicTypes'"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the metadata object"),
		),
		mcp.WithString("predefinedMask",
			mcp.Description("Optional substring filter applied to predefined item names"),
		),
		mcp.WithNumber("maxItems",
			mcp.Description("Maximum number of items to return"),
		),
	)

	s.AddTool(tool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler(methodListPredefinedData, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			metaType, ok := args["metaType"].(string)
			if !ok || metaType == "" {
				return mcp.NewToolResultError("metaType is required"), nil
			}
			name, ok := args["name"].(string)
			if !ok || name == "" {
				return mcp.NewToolResultError("name is required"), nil
			}

			params := map[string]interface{}{
				"metaType": metaType,
				"name":     name,
			}
			if mask, ok := args["predefinedMask"].(string); ok && mask != "" {
				params["predefinedMask"] = mask
			}
			if max, ok := args["maxItems"].(float64); ok && max > 0 {
				params["maxItems"] = int(max)
			}

			return callBackend(ctx, sc, methodListPredefinedData, params)
		})))
}

func registerGetPredefinedData(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool(methodGetPredefinedData,
		mcp.WithDescription("Get a single predefined item of a metadata object by name"),
		mcp.WithString("metaType",
			mcp.Required(),
			mcp.Description("Metadata type, e.g. 'Catalogs' or 'ChartsOfAccounts'"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the metadata object"),
		),
		mcp.WithString("predefinedName",
			mcp.Required(),
			mcp.Description("Name of the predefined item"),
		),
	)

	s.AddTool(tool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler(methodGetPredefinedData, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			metaType, ok := args["metaType"].(string)
			if !ok || metaType == "" {
				return mcp.NewToolResultError("metaType is required"), nil
			}
			name, ok := args["name"].(string)
			if !ok || name == "" {
				return mcp.NewToolResultError("name is required"), nil
			}
			predefinedName, ok := args["predefinedName"].(string)
			if !ok || predefinedName == "" {
				return mcp.NewToolResultError("predefinedName is required"), nil
			}

			return callBackend(ctx, sc, methodGetPredefinedData, map[string]interface{}{
				"metaType":       metaType,
				"name":           name,
				"predefinedName": predefinedName,
			})
		})))
}

// callBackend resolves the request credential, forwards the call to the
// 1C back end and renders the result or the classified failure.
func callBackend(ctx context.Context, sc *server.ServerContext, method string, params map[string]interface{}) (*mcp.CallToolResult, error) {
	cred, err := common.ResolveCredential(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError("No back-end credential available for this request. Authenticate via OAuth first."), nil
	}

	start := time.Now()
	result, err := sc.Backend().Call(ctx, method, params, cred)
	sc.Metrics().RecordBackendCall(ctx, method, backendCallStatus(err), time.Since(start))
	if err != nil {
		switch {
		case onec.IsUnauthorized(err):
			return mcp.NewToolResultError("The 1C back end rejected the credentials bound to this session"), nil
		case onec.IsUnavailable(err):
			return mcp.NewToolResultError(fmt.Sprintf("The 1C back end is unavailable: %v", err)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("Back-end protocol error: %v", err)), nil
		}
	}

	return mcp.NewToolResultText(formatResult(result)), nil
}

// backendCallStatus maps a classified back-end error to the status label
// reported on the backend call metrics
func backendCallStatus(err error) string {
	switch {
	case err == nil:
		return instrumentation.StatusSuccess
	case onec.IsUnauthorized(err):
		return "unauthorized"
	case onec.IsUnavailable(err):
		return "unavailable"
	default:
		return "protocol_error"
	}
}

// formatResult re-indents the raw JSON result for readability, falling
// back to the raw bytes if indentation fails.
func formatResult(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
