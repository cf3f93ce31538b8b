package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/rcourtman/unraid-mcp/internal/mcp"
)

// ToolHandler executes one tool call.
type ToolHandler func(ctx context.Context, exec *Executor, args map[string]interface{}) (mcp.CallToolResult, error)

// RegisteredTool pairs a tool definition with its handler.
type RegisteredTool struct {
	Definition mcp.Tool
	Handler    ToolHandler
}

// ToolRegistry holds tools in registration order.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]RegisteredTool
	order []string
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]RegisteredTool)}
}

// Register adds or replaces a tool. Replacing keeps the original position.
func (r *ToolRegistry) Register(tool RegisteredTool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Definition.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// ListTools returns the definitions in registration order.
func (r *ToolRegistry) ListTools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name].Definition)
	}
	return tools
}

// Execute runs the named tool. Unknown names produce an error result rather
// than an error so the client sees the message.
func (r *ToolRegistry) Execute(ctx context.Context, exec *Executor, name string, args map[string]interface{}) (mcp.CallToolResult, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return mcp.NewErrorResult(fmt.Errorf("unknown tool: %s", name)), nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return tool.Handler(ctx, exec, args)
}
