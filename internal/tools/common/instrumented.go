package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/trace"

	"github.com/onecgate/onecgate/internal/instrumentation"
	"github.com/onecgate/onecgate/internal/server"
)

// ToolHandler is the handler signature expected by mcp-go's AddTool.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with metrics and tracing.
// It records one invocation per call, labelled with the tool name and
// whether the call succeeded.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		if provider := sc.Instrumentation(); provider != nil {
			var span trace.Span
			ctx, span = provider.Tracer("onecgate/tools").Start(ctx, toolName)
			defer span.End()
		}

		result, err := handler(ctx, request)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		sc.Metrics().RecordToolInvocation(ctx, toolName, status, time.Since(start))

		return result, err
	}
}
