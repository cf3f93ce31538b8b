package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

type resourceBinding struct {
	resource Resource
	tool     string
}

// Resources are read-only views over tool output.
var resourceBindings = []resourceBinding{
	{
		resource: Resource{
			URI:         "unraid://health/report",
			Name:        "Health report",
			Description: "Current health report of the Unraid server",
			MimeType:    "application/json",
		},
		tool: "health_check",
	},
	{
		resource: Resource{
			URI:         "unraid://array/status",
			Name:        "Array status",
			Description: "Storage array summary and per-role disk health",
			MimeType:    "application/json",
		},
		tool: "get_array_status",
	},
}

const analyzeHealthPrompt = "analyze_server_health"

func (s *Server) handleListResources() (*ListResourcesResult, *Error) {
	resources := make([]Resource, 0, len(resourceBindings))
	for _, binding := range resourceBindings {
		resources = append(resources, binding.resource)
	}
	return &ListResourcesResult{Resources: resources}, nil
}

func (s *Server) handleReadResource(ctx context.Context, params json.RawMessage) (*ReadResourceResult, *Error) {
	var readParams ReadResourceParams
	if err := json.Unmarshal(params, &readParams); err != nil || readParams.URI == "" {
		return nil, &Error{Code: ErrInvalidParams, Message: "Resource uri is required"}
	}

	var binding *resourceBinding
	for i := range resourceBindings {
		if resourceBindings[i].resource.URI == readParams.URI {
			binding = &resourceBindings[i]
			break
		}
	}
	if binding == nil {
		return nil, &Error{Code: ErrInvalidParams, Message: fmt.Sprintf("Unknown resource: %s", readParams.URI)}
	}

	executor := s.executor
	if executor == nil {
		return nil, &Error{Code: ErrInternal, Message: "No tool executor configured"}
	}

	result, err := executor.ExecuteTool(ctx, binding.tool, map[string]interface{}{})
	if err != nil {
		return nil, &Error{Code: ErrInternal, Message: err.Error()}
	}
	if result.IsError {
		return nil, &Error{Code: ErrInternal, Message: result.Text()}
	}

	return &ReadResourceResult{
		Contents: []ResourceContent{{
			URI:      binding.resource.URI,
			MimeType: binding.resource.MimeType,
			Text:     result.Text(),
		}},
	}, nil
}

func (s *Server) handleListPrompts() (*ListPromptsResult, *Error) {
	return &ListPromptsResult{
		Prompts: []Prompt{{
			Name:        analyzeHealthPrompt,
			Description: "Run a health check and explain any issues found",
			Arguments: []PromptArgument{{
				Name:        "focus",
				Description: "Optional area to focus on (array, notifications, docker, latency)",
			}},
		}},
	}, nil
}

func (s *Server) handleGetPrompt(params json.RawMessage) (*GetPromptResult, *Error) {
	var promptParams GetPromptParams
	if err := json.Unmarshal(params, &promptParams); err != nil {
		return nil, &Error{Code: ErrInvalidParams, Message: "Failed to parse prompt params"}
	}
	if promptParams.Name != analyzeHealthPrompt {
		return nil, &Error{Code: ErrInvalidParams, Message: fmt.Sprintf("Unknown prompt: %s", promptParams.Name)}
	}

	text := "Call the health_check tool and summarize the server status. " +
		"List each reported issue with a likely cause and a suggested next step. " +
		"If the array is not healthy, call get_array_status for per-disk detail."
	if focus := promptParams.Arguments["focus"]; focus != "" {
		text += fmt.Sprintf(" Pay particular attention to %s.", focus)
	}

	return &GetPromptResult{
		Description: "Analyze Unraid server health",
		Messages: []PromptMessage{{
			Role:    "user",
			Content: textContent(text),
		}},
	}, nil
}
