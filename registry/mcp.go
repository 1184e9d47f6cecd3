package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPRequest is an incoming JSON-RPC request. A request without ID is a
// notification.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse is a JSON-RPC response.
type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

// MCPError is a JSON-RPC error object.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// IsNotification reports whether req expects no response.
func (req MCPRequest) IsNotification() bool {
	return req.ID == nil && strings.HasPrefix(req.Method, "notifications/")
}

// HandleRequest processes an MCP request and returns a response.
func (r *Registry) HandleRequest(ctx context.Context, req MCPRequest) MCPResponse {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return errorResponse(req.ID, ErrCodeInvalidRequest, fmt.Sprintf("unsupported jsonrpc version %q", req.JSONRPC))
	}

	switch req.Method {
	case "initialize":
		return r.handleInitialize(req.ID)
	case "ping":
		return MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	case "tools/list":
		return r.handleToolsList(ctx, req.ID)
	case "tools/call":
		return r.handleToolsCall(ctx, req.ID, req.Params)
	default:
		if req.IsNotification() {
			return MCPResponse{JSONRPC: "2.0"}
		}
		return errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method %s not found", req.Method))
	}
}

func errorResponse(id any, code int, msg string) MCPResponse {
	return MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: msg},
	}
}

func (r *Registry) handleInitialize(id any) MCPResponse {
	result := map[string]any{
		"protocolVersion": model.MCPVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    r.config.ServerInfo.Name,
			"version": r.config.ServerInfo.Version,
		},
	}
	return MCPResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func (r *Registry) handleToolsList(ctx context.Context, id any) MCPResponse {
	tools, err := r.ListAll(ctx)
	if err != nil {
		return errorResponse(id, ErrCodeInternal, err.Error())
	}

	mcpTools := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		mcpTools = append(mcpTools, toMCPTool(tool.Tool))
	}
	return MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  map[string]any{"tools": mcpTools},
	}
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (r *Registry) handleToolsCall(ctx context.Context, id any, params json.RawMessage) MCPResponse {
	var callParams toolsCallParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return errorResponse(id, ErrCodeInvalidParams, err.Error())
	}

	result, err := r.Execute(ctx, callParams.Name, callParams.Arguments)
	if err != nil {
		code := ErrCodeToolExecFailed
		switch {
		case errors.Is(err, ErrToolNotFound):
			code = ErrCodeToolNotFound
		case errors.Is(err, ErrInvalidRequest):
			code = ErrCodeInvalidParams
		}
		return errorResponse(id, code, err.Error())
	}
	return MCPResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func toMCPTool(tool mcp.Tool) map[string]any {
	return map[string]any{
		"name":        tool.Name,
		"description": tool.Description,
		"inputSchema": tool.InputSchema,
	}
}
