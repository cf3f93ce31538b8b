package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/rcourtman/unraid-mcp/internal/logging"
)

// ProtocolVersion is the MCP revision offered when the client asks for one
// this server does not know.
const ProtocolVersion = "2024-11-05"

var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
}

const serverInstructions = "Provides tools to interact with an Unraid server's GraphQL API."

// ToolExecutor executes tools on behalf of the MCP server
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (CallToolResult, error)
	ListTools() []Tool
}

// Server dispatches MCP requests to a ToolExecutor. Transports feed it raw
// JSON-RPC messages.
type Server struct {
	executor ToolExecutor
	info     ServerInfo
	logger   zerolog.Logger
}

// NewServer creates a new MCP server
func NewServer(name, version string, executor ToolExecutor) *Server {
	return &Server{
		executor: executor,
		info:     ServerInfo{Name: name, Version: version},
		logger:   logging.New("mcp"),
	}
}

// HandleMessage processes one JSON-RPC message or batch. It returns nil when
// nothing needs to be written back (notifications only).
func (s *Server) HandleMessage(ctx context.Context, payload []byte) []byte {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return mustMarshal(errorResponse(nil, ErrInvalidRequest, "Empty JSON-RPC message"))
	}

	if trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return mustMarshal(errorResponse(nil, ErrParse, "Failed to parse JSON-RPC batch"))
		}
		if len(batch) == 0 {
			return mustMarshal(errorResponse(nil, ErrInvalidRequest, "Empty JSON-RPC batch"))
		}
		responses := make([]*Response, 0, len(batch))
		for _, item := range batch {
			if resp := s.handleOne(ctx, item); resp != nil {
				responses = append(responses, resp)
			}
		}
		if len(responses) == 0 {
			return nil
		}
		return mustMarshal(responses)
	}

	resp := s.handleOne(ctx, trimmed)
	if resp == nil {
		return nil
	}
	return mustMarshal(resp)
}

func (s *Server) handleOne(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, ErrParse, "Failed to parse JSON-RPC request")
	}

	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, ErrInvalidRequest, "Invalid JSON-RPC version")
	}
	if req.Method == "" {
		return errorResponse(req.ID, ErrInvalidRequest, "Missing method")
	}

	s.logger.Debug().
		Str("method", req.Method).
		Interface("id", req.ID).
		Msg("MCP request received")

	result, mcpErr := s.dispatch(ctx, req)
	if req.IsNotification() {
		if mcpErr != nil {
			s.logger.Debug().Str("method", req.Method).Str("error", mcpErr.Message).Msg("MCP notification not handled")
		}
		return nil
	}
	if mcpErr != nil {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: mcpErr}
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return errorResponse(req.ID, ErrInternal, "Failed to marshal result")
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: resultJSON}
}

func (s *Server) dispatch(ctx context.Context, req Request) (result interface{}, mcpErr *Error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error().
				Str("method", req.Method).
				Interface("panic", recovered).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from panic in MCP handler")
			result = nil
			mcpErr = &Error{Code: ErrInternal, Message: fmt.Sprintf("Internal error: %v", recovered)}
		}
	}()

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req.Params)
	case "initialized", "notifications/initialized", "notifications/cancelled":
		return nil, nil
	case "ping":
		return map[string]interface{}{}, nil
	case "tools/list":
		return s.handleListTools()
	case "tools/call":
		return s.handleCallTool(ctx, req.Params)
	case "resources/list":
		return s.handleListResources()
	case "resources/read":
		return s.handleReadResource(ctx, req.Params)
	case "prompts/list":
		return s.handleListPrompts()
	case "prompts/get":
		return s.handleGetPrompt(req.Params)
	default:
		return nil, &Error{
			Code:    ErrMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}
}

func (s *Server) handleInitialize(params json.RawMessage) (*InitializeResult, *Error) {
	var initParams InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, &Error{
				Code:    ErrInvalidParams,
				Message: "Failed to parse initialize params",
			}
		}
	}

	version := ProtocolVersion
	if supportedProtocolVersions[initParams.ProtocolVersion] {
		version = initParams.ProtocolVersion
	}

	s.logger.Info().
		Str("client", initParams.ClientInfo.Name).
		Str("clientVersion", initParams.ClientInfo.Version).
		Str("protocolVersion", version).
		Msg("MCP client connected")

	return &InitializeResult{
		ProtocolVersion: version,
		Capabilities: Capabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
			Prompts:   &PromptsCapability{},
		},
		ServerInfo:   s.info,
		Instructions: serverInstructions,
	}, nil
}

func (s *Server) handleListTools() (*ListToolsResult, *Error) {
	executor := s.executor
	if executor == nil {
		return &ListToolsResult{Tools: []Tool{}}, nil
	}
	return &ListToolsResult{Tools: executor.ListTools()}, nil
}

func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage) (*CallToolResult, *Error) {
	var callParams CallToolParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, &Error{
			Code:    ErrInvalidParams,
			Message: "Failed to parse tool call params",
		}
	}
	if callParams.Name == "" {
		return nil, &Error{Code: ErrInvalidParams, Message: "Tool name is required"}
	}

	executor := s.executor
	if executor == nil {
		return nil, &Error{
			Code:    ErrInternal,
			Message: "No tool executor configured",
		}
	}

	ctx, requestID := logging.WithRequestID(ctx, logging.GetRequestID(ctx))
	s.logger.Debug().
		Str("tool", callParams.Name).
		Str("request_id", requestID).
		Interface("args", callParams.Arguments).
		Msg("Executing tool")

	result, err := executor.ExecuteTool(ctx, callParams.Name, callParams.Arguments)
	if err != nil {
		s.logger.Error().Err(err).Str("tool", callParams.Name).Str("request_id", requestID).Msg("Tool execution failed")
		errResult := NewErrorResult(err)
		return &errResult, nil
	}

	return &result, nil
}

func errorResponse(id interface{}, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Responses are built from marshalable types; reaching this is a bug.
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"Failed to marshal response"}}`)
	}
	return data
}
