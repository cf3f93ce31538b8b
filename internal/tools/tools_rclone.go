package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IGLOU-EU/go-wildcard/v2"

	"github.com/rcourtman/unraid-mcp/internal/mcp"
	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

// RcloneRemote is one configured rclone remote.
type RcloneRemote struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
}

type rcloneMutationResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Remote  *RcloneRemote `json:"remote,omitempty"`
}

func (e *Executor) registerRcloneTools() {
	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name:        "list_rclone_remotes",
			Description: "Retrieves all configured rclone remotes with their configuration details.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]mcp.PropertySchema{
					"name_pattern": {
						Type:        "string",
						Description: "Optional wildcard filter on remote names, e.g. \"backup-*\"",
					},
				},
			},
		},
		Handler: func(ctx context.Context, exec *Executor, args map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executeListRcloneRemotes(ctx, args)
		},
	})

	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name:        "get_rclone_config_form",
			Description: "Gets the rclone configuration form schema used to set up a new remote.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]mcp.PropertySchema{
					"provider_type": {
						Type:        "string",
						Description: "Provider type to get the form for (e.g. s3, drive, dropbox, ftp)",
					},
				},
			},
		},
		Handler: func(ctx context.Context, exec *Executor, args map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executeGetRcloneConfigForm(ctx, args)
		},
	})

	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name:        "create_rclone_remote",
			Description: "Creates a new rclone remote with the given provider configuration.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]mcp.PropertySchema{
					"name": {
						Type:        "string",
						Description: "Name for the new remote",
					},
					"provider_type": {
						Type:        "string",
						Description: "Provider type (e.g. s3, drive, dropbox, ftp)",
					},
					"config_data": {
						Type:        "object",
						Description: "Provider-specific configuration parameters",
					},
				},
				Required: []string{"name", "provider_type", "config_data"},
			},
		},
		Handler: func(ctx context.Context, exec *Executor, args map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executeCreateRcloneRemote(ctx, args)
		},
	})

	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name:        "delete_rclone_remote",
			Description: "Deletes an existing rclone remote by name.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]mcp.PropertySchema{
					"name": {
						Type:        "string",
						Description: "Name of the remote to delete",
					},
				},
				Required: []string{"name"},
			},
		},
		Handler: func(ctx context.Context, exec *Executor, args map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executeDeleteRcloneRemote(ctx, args)
		},
	})
}

func (e *Executor) executeListRcloneRemotes(ctx context.Context, args map[string]interface{}) (mcp.CallToolResult, error) {
	var response struct {
		Rclone *struct {
			Remotes []RcloneRemote `json:"remotes"`
		} `json:"rclone"`
	}
	if err := e.queryInto(ctx, unraid.RcloneRemotesQuery, nil, &response); err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to list rclone remotes: %w", err)), nil
	}

	remotes := []RcloneRemote{}
	if response.Rclone != nil {
		pattern := stringArg(args, "name_pattern")
		for _, remote := range response.Rclone.Remotes {
			if pattern != "" && !wildcard.Match(pattern, remote.Name) {
				continue
			}
			remotes = append(remotes, remote)
		}
	}

	e.logger.Debug().Int("count", len(remotes)).Msg("Retrieved rclone remotes")
	return mcp.NewJSONResult(remotes), nil
}

func (e *Executor) executeGetRcloneConfigForm(ctx context.Context, args map[string]interface{}) (mcp.CallToolResult, error) {
	formOptions := map[string]any{}
	if provider := stringArg(args, "provider_type"); provider != "" {
		formOptions["providerType"] = provider
	}

	var response struct {
		Rclone *struct {
			ConfigForm json.RawMessage `json:"configForm"`
		} `json:"rclone"`
	}
	if err := e.queryInto(ctx, unraid.RcloneConfigFormQuery, map[string]any{"formOptions": formOptions}, &response); err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to get rclone config form: %w", err)), nil
	}
	if response.Rclone == nil || unraid.IsNull(response.Rclone.ConfigForm) {
		return mcp.NewErrorResult(errors.New("Failed to get rclone config form: no config form data received")), nil
	}

	return mcp.NewJSONResult(response.Rclone.ConfigForm), nil
}

func (e *Executor) executeCreateRcloneRemote(ctx context.Context, args map[string]interface{}) (mcp.CallToolResult, error) {
	name, err := requireStringArg(args, "name")
	if err != nil {
		return mcp.NewErrorResult(err), nil
	}
	providerType, err := requireStringArg(args, "provider_type")
	if err != nil {
		return mcp.NewErrorResult(err), nil
	}
	configData, ok := args["config_data"].(map[string]interface{})
	if !ok {
		return mcp.NewErrorResult(errors.New("config_data must be an object")), nil
	}

	variables := map[string]any{
		"input": map[string]any{
			"name":   name,
			"type":   providerType,
			"config": configData,
		},
	}

	var response struct {
		Rclone *struct {
			CreateRcloneRemote *RcloneRemote `json:"createRCloneRemote"`
		} `json:"rclone"`
	}
	if err := e.queryInto(ctx, unraid.CreateRcloneRemoteMutation, variables, &response); err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to create rclone remote %s: %w", name, err)), nil
	}
	if response.Rclone == nil || response.Rclone.CreateRcloneRemote == nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to create rclone remote %s: no remote returned", name)), nil
	}

	e.logger.Info().Str("remote", name).Str("type", providerType).Msg("Created rclone remote")
	return mcp.NewJSONResult(rcloneMutationResult{
		Success: true,
		Message: fmt.Sprintf("rclone remote '%s' created successfully", name),
		Remote:  response.Rclone.CreateRcloneRemote,
	}), nil
}

func (e *Executor) executeDeleteRcloneRemote(ctx context.Context, args map[string]interface{}) (mcp.CallToolResult, error) {
	name, err := requireStringArg(args, "name")
	if err != nil {
		return mcp.NewErrorResult(err), nil
	}

	variables := map[string]any{
		"input": map[string]any{"name": name},
	}

	var response struct {
		Rclone *struct {
			DeleteRcloneRemote bool `json:"deleteRCloneRemote"`
		} `json:"rclone"`
	}
	if err := e.queryInto(ctx, unraid.DeleteRcloneRemoteMutation, variables, &response); err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to delete rclone remote %s: %w", name, err)), nil
	}
	if response.Rclone == nil || !response.Rclone.DeleteRcloneRemote {
		return mcp.NewErrorResult(fmt.Errorf("Failed to delete rclone remote '%s'", name)), nil
	}

	e.logger.Info().Str("remote", name).Msg("Deleted rclone remote")
	return mcp.NewJSONResult(rcloneMutationResult{
		Success: true,
		Message: fmt.Sprintf("rclone remote '%s' deleted successfully", name),
	}), nil
}
