package metadata_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/onecgate/onecgate/internal/auth"
	"github.com/onecgate/onecgate/internal/instrumentation"
	"github.com/onecgate/onecgate/internal/onec"
	"github.com/onecgate/onecgate/internal/server"
)

// rpcEcho is a back-end stub that records the last request and answers
// with a fixed result.
type rpcEcho struct {
	lastMethod string
	lastParams map[string]interface{}
	status     int
	result     string
}

func (e *rpcEcho) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if e.status != 0 {
			w.WriteHeader(e.status)
			return
		}

		var req struct {
			ID     string                 `json:"id"`
			Method string                 `json:"method"`
			Params map[string]interface{} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		e.lastMethod = req.Method
		e.lastParams = req.Params

		result := e.result
		if result == "" {
			result = "{}"
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":%s}`, req.ID, result)
	}
}

func newToolTestContext(t *testing.T, echo *rpcEcho) *server.ServerContext {
	t.Helper()

	srv := httptest.NewServer(echo.handler())
	t.Cleanup(srv.Close)

	backend, err := onec.NewClient(onec.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	resolver := auth.NewResolver(auth.ModeNone,
		auth.Credential{Username: "svc", Password: "s"}, nil)

	sc, err := server.NewServerContext(context.Background(), server.Config{
		Backend:  backend,
		Resolver: resolver,
	})
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })

	return sc
}

// resultText extracts the text payload of a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	if result == nil || len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("tool result content is %T, want TextContent", result.Content[0])
	}
	return text.Text
}

func TestRegisterMetadataTools(t *testing.T) {
	sc := newToolTestContext(t, &rpcEcho{})

	s := mcpserver.NewMCPServer("test", "0.0.1", mcpserver.WithToolCapabilities(true))
	if err := RegisterMetadataTools(s, sc); err != nil {
		t.Fatalf("RegisterMetadataTools() error = %v", err)
	}
}

func TestCallBackend_Success(t *testing.T) {
	echo := &rpcEcho{result: `{"items":["Номенклатура","Контрагенты"]}`}
	sc := newToolTestContext(t, echo)

	result, err := callBackend(context.Background(), sc, methodListMetadataObjects,
		map[string]interface{}{"metaType": "Catalogs", "maxItems": 10})
	if err != nil {
		t.Fatalf("callBackend() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("callBackend() returned tool error: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Номенклатура") {
		t.Errorf("result text missing back-end payload: %s", text)
	}
	// The raw JSON is re-indented for the model
	if !strings.Contains(text, "\n") {
		t.Error("result text should be indented JSON")
	}

	if echo.lastMethod != methodListMetadataObjects {
		t.Errorf("back-end method = %q, want %q", echo.lastMethod, methodListMetadataObjects)
	}
	if echo.lastParams["metaType"] != "Catalogs" {
		t.Errorf("back-end params = %v", echo.lastParams)
	}
}

func TestCallBackend_Unauthorized(t *testing.T) {
	sc := newToolTestContext(t, &rpcEcho{status: http.StatusUnauthorized})

	result, err := callBackend(context.Background(), sc, methodGetMetadataStructure,
		map[string]interface{}{"metaType": "Catalogs", "name": "Номенклатура"})
	if err != nil {
		t.Fatalf("callBackend() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error for a rejected credential")
	}
	if text := resultText(t, result); !strings.Contains(text, "rejected") {
		t.Errorf("error text = %q, want credential rejection message", text)
	}
}

func TestCallBackend_Unavailable(t *testing.T) {
	sc := newToolTestContext(t, &rpcEcho{status: http.StatusServiceUnavailable})

	result, err := callBackend(context.Background(), sc, methodListPredefinedData,
		map[string]interface{}{"metaType": "Catalogs", "name": "Валюты"})
	if err != nil {
		t.Fatalf("callBackend() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error for an unreachable back end")
	}
	if text := resultText(t, result); !strings.Contains(text, "unavailable") {
		t.Errorf("error text = %q, want unavailability message", text)
	}
}

func TestCallBackend_NoCredential(t *testing.T) {
	oauthHandler, err := auth.NewHandler(&auth.Config{Issuer: "http://localhost:8000"}, nil)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	t.Cleanup(oauthHandler.Close)

	backend, err := onec.NewClient(onec.Config{BaseURL: "http://localhost:18080"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	resolver := auth.NewResolver(auth.ModeOAuth2, auth.Credential{}, oauthHandler.Tokens())
	sc, err := server.NewServerContext(context.Background(), server.Config{
		Backend:  backend,
		Resolver: resolver,
		OAuth:    oauthHandler,
	})
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })

	result, err := callBackend(context.Background(), sc, methodListMetadataObjects,
		map[string]interface{}{"metaType": "Catalogs"})
	if err != nil {
		t.Fatalf("callBackend() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error without a resolved credential")
	}
	if text := resultText(t, result); !strings.Contains(text, "OAuth") {
		t.Errorf("error text = %q, want authentication hint", text)
	}
}

func TestCallBackend_CredentialFromContext(t *testing.T) {
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _, _ = r.BasicAuth()

		var req struct {
			ID string `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{}}`, req.ID)
	}))
	t.Cleanup(srv.Close)

	backend, err := onec.NewClient(onec.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	resolver := auth.NewResolver(auth.ModeNone,
		auth.Credential{Username: "static", Password: "s"}, nil)
	sc, err := server.NewServerContext(context.Background(), server.Config{
		Backend:  backend,
		Resolver: resolver,
	})
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })

	// A per-session credential from the middleware wins over the static one
	ctx := auth.WithCredential(context.Background(),
		auth.Credential{Username: "session-user", Password: "session-pass"})

	if _, err := callBackend(ctx, sc, methodListMetadataObjects,
		map[string]interface{}{"metaType": "Catalogs"}); err != nil {
		t.Fatalf("callBackend() error = %v", err)
	}
	if gotUser != "session-user" {
		t.Errorf("back-end saw user %q, want the session credential", gotUser)
	}
}

func TestCallBackend_RecordsBackendCalls(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = meterProvider.Shutdown(context.Background()) })

	metrics, err := instrumentation.NewMetrics(meterProvider.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	echo := &rpcEcho{}
	srv := httptest.NewServer(echo.handler())
	t.Cleanup(srv.Close)

	backend, err := onec.NewClient(onec.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	sc, err := server.NewServerContext(context.Background(), server.Config{
		Backend: backend,
		Resolver: auth.NewResolver(auth.ModeNone,
			auth.Credential{Username: "svc", Password: "s"}, nil),
		Metrics: metrics,
	})
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })

	if _, err := callBackend(context.Background(), sc, methodListMetadataObjects,
		map[string]interface{}{"metaType": "Catalogs"}); err != nil {
		t.Fatalf("callBackend() error = %v", err)
	}

	echo.status = http.StatusServiceUnavailable
	if _, err := callBackend(context.Background(), sc, methodListMetadataObjects,
		map[string]interface{}{"metaType": "Catalogs"}); err != nil {
		t.Fatalf("callBackend() error = %v", err)
	}

	points := backendCallPoints(t, reader)
	if got := backendCallCount(points, methodListMetadataObjects, "success"); got != 1 {
		t.Errorf("successful backend calls = %d, want 1", got)
	}
	if got := backendCallCount(points, methodListMetadataObjects, "unavailable"); got != 1 {
		t.Errorf("unavailable backend calls = %d, want 1", got)
	}
}

// backendCallPoints collects the backend call counter's data points
func backendCallPoints(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.DataPoint[int64] {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "backend_calls_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("backend_calls_total data = %T, want Sum[int64]", m.Data)
			}
			return sum.DataPoints
		}
	}
	return nil
}

func backendCallCount(points []metricdata.DataPoint[int64], method, status string) int64 {
	for _, dp := range points {
		m, _ := dp.Attributes.Value(attribute.Key("method"))
		s, _ := dp.Attributes.Value(attribute.Key("status"))
		if m.AsString() == method && s.AsString() == status {
			return dp.Value
		}
	}
	return 0
}

func TestBackendCallStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no error", nil, "success"},
		{"unauthorized", onec.NewUnauthorizedError("rejected"), "unauthorized"},
		{"unavailable", onec.NewUnavailableError("down", nil), "unavailable"},
		{"protocol", onec.NewProtocolError("bad envelope", nil), "protocol_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backendCallStatus(tt.err); got != tt.want {
				t.Errorf("backendCallStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatResult(t *testing.T) {
	indented := formatResult(json.RawMessage(`{"a":1,"b":[2,3]}`))
	if !strings.Contains(indented, "\n  ") {
		t.Errorf("formatResult() = %q, want indented JSON", indented)
	}

	// Invalid JSON falls back to the raw bytes
	raw := formatResult(json.RawMessage(`not-json`))
	if raw != "not-json" {
		t.Errorf("formatResult() fallback = %q, want raw input", raw)
	}
}
