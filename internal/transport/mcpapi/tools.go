package mcpapi

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kubeportal/kubeportal/internal/forward"
	"github.com/kubeportal/kubeportal/internal/rpcapi"
)

func newToolSet(adapter *rpcapi.Adapter) []server.ServerTool {
	h := &handlers{adapter: adapter}
	return []server.ServerTool{
		{Tool: mcp.NewTool("forward_create",
			mcp.WithDescription("Create or update a port forward"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Forward name")),
			mcp.WithString("group", mcp.Description("Group name, defaults to 'default'")),
			mcp.WithString("type", mcp.Required(), mcp.Enum("socket", "kubernetes"), mcp.Description("Forward variant")),
			mcp.WithString("localPort", mcp.Required(), mcp.Description("Local TCP port")),
			mcp.WithBoolean("enabled", mcp.DefaultBool(true)),
			mcp.WithString("remoteHost", mcp.Description("socket: remote host")),
			mcp.WithString("remotePort", mcp.Description("socket: remote port")),
			mcp.WithString("context", mcp.Description("kubernetes: kubeconfig context")),
			mcp.WithString("namespace", mcp.Description("kubernetes: namespace")),
			mcp.WithString("service", mcp.Description("kubernetes: service name")),
			mcp.WithString("servicePort", mcp.Description("kubernetes: service port")),
		), Handler: h.createForward},

		{Tool: mcp.NewTool("forward_delete",
			mcp.WithDescription("Delete a port forward"),
			mcp.WithString("name", mcp.Required()),
		), Handler: h.deleteForward},

		{Tool: mcp.NewTool("forward_list",
			mcp.WithDescription("List port forwards, optionally filtered by group"),
			mcp.WithString("group", mcp.Description("Optional group filter")),
		), Handler: h.listForwards},

		{Tool: mcp.NewTool("forward_get",
			mcp.WithDescription("Get a single port forward by name"),
			mcp.WithString("name", mcp.Required()),
		), Handler: h.getForward},

		{Tool: mcp.NewTool("forward_start",
			mcp.WithDescription("Start a port forward"),
			mcp.WithString("name", mcp.Required()),
		), Handler: h.startForward},

		{Tool: mcp.NewTool("forward_stop",
			mcp.WithDescription("Stop a port forward"),
			mcp.WithString("name", mcp.Required()),
		), Handler: h.stopForward},

		{Tool: mcp.NewTool("group_list",
			mcp.WithDescription("List groups with enabled state and active/total forward counts"),
		), Handler: h.listGroups},

		{Tool: mcp.NewTool("group_enable",
			mcp.WithDescription("Enable and start every member of a group"),
			mcp.WithString("group", mcp.Required()),
		), Handler: h.enableGroup},

		{Tool: mcp.NewTool("group_disable",
			mcp.WithDescription("Stop and disable every member of a group"),
			mcp.WithString("group", mcp.Required()),
		), Handler: h.disableGroup},

		{Tool: mcp.NewTool("group_delete",
			mcp.WithDescription("Delete every member of a group"),
			mcp.WithString("group", mcp.Required()),
		), Handler: h.deleteGroup},

		{Tool: mcp.NewTool("config_apply",
			mcp.WithDescription("Merge a forward registry JSON document into the live registry"),
			mcp.WithString("configJson", mcp.Required(), mcp.Description("Registry JSON, same shape as the config file")),
			mcp.WithString("targetGroup", mcp.Description("Force every incoming entry into this group")),
			mcp.WithBoolean("removeMissing", mcp.DefaultBool(false)),
		), Handler: h.applyConfig},

		{Tool: mcp.NewTool("config_export",
			mcp.WithDescription("Export the current forward registry as JSON"),
			mcp.WithBoolean("includeDisabled", mcp.DefaultBool(true)),
			mcp.WithString("group", mcp.Description("Optional group filter")),
		), Handler: h.exportConfig},

		{Tool: mcp.NewTool("config_reload",
			mcp.WithDescription("Reload the forward registry from disk"),
		), Handler: h.reloadConfig},

		{Tool: mcp.NewTool("status_get",
			mcp.WithDescription("Get daemon status and live forward counters"),
		), Handler: h.getStatus},
	}
}

type handlers struct {
	adapter *rpcapi.Adapter
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	return p, nil
}

func (h *handlers) createForward(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	typeStr, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("type is required"), nil
	}
	localPortStr, err := req.RequireString("localPort")
	if err != nil {
		return mcp.NewToolResultError("localPort is required"), nil
	}
	localPort, err := parsePort(localPortStr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	def := &forward.Definition{
		Name:      name,
		Group:     argString(req, "group", forward.DefaultGroup),
		Type:      forward.Type(typeStr),
		LocalPort: localPort,
		Enabled:   argBool(req, "enabled", true),
	}

	switch def.Type {
	case forward.TypeSocket:
		def.RemoteHost = argString(req, "remoteHost", "")
		if portStr := argString(req, "remotePort", ""); portStr != "" {
			port, err := parsePort(portStr)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			def.RemotePort = port
		}
	case forward.TypeKubernetes:
		def.Context = argString(req, "context", "")
		def.Namespace = argString(req, "namespace", "")
		def.Service = argString(req, "service", "")
		if portStr := argString(req, "servicePort", ""); portStr != "" {
			port, err := parsePort(portStr)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			def.ServicePort = port
		}
	}

	result := h.adapter.CreateForward(def)
	if !result.Success {
		return mcp.NewToolResultError(result.Error), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("forward %q saved", name)), nil
}

func (h *handlers) deleteForward(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	result := h.adapter.DeleteForward(name)
	if !result.Success {
		return mcp.NewToolResultError(result.Error), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("forward %q deleted", name)), nil
}

func (h *handlers) listForwards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	group := argString(req, "group", "")
	return jsonResult(h.adapter.ListForwards(group))
}

func (h *handlers) getForward(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	def, result := h.adapter.GetForward(name)
	if !result.Success {
		return mcp.NewToolResultError(result.Error), nil
	}
	return jsonResult(def)
}

func (h *handlers) startForward(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	result := h.adapter.StartForward(name)
	if !result.Success {
		return mcp.NewToolResultError(result.Error), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("forward %q started", name)), nil
}

func (h *handlers) stopForward(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	result := h.adapter.StopForward(name)
	if !result.Success {
		return mcp.NewToolResultError(result.Error), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("forward %q stopped", name)), nil
}

func (h *handlers) listGroups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.adapter.ListGroups())
}

func (h *handlers) enableGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	group, err := req.RequireString("group")
	if err != nil {
		return mcp.NewToolResultError("group is required"), nil
	}
	count := h.adapter.EnableGroup(group)
	return mcp.NewToolResultText(fmt.Sprintf("enabled %d member(s) of group %q", count, group)), nil
}

func (h *handlers) disableGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	group, err := req.RequireString("group")
	if err != nil {
		return mcp.NewToolResultError("group is required"), nil
	}
	count := h.adapter.DisableGroup(group)
	return mcp.NewToolResultText(fmt.Sprintf("disabled %d member(s) of group %q", count, group)), nil
}

func (h *handlers) deleteGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	group, err := req.RequireString("group")
	if err != nil {
		return mcp.NewToolResultError("group is required"), nil
	}
	count := h.adapter.DeleteGroup(group)
	return mcp.NewToolResultText(fmt.Sprintf("deleted %d member(s) of group %q", count, group)), nil
}

func (h *handlers) applyConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	configJSON, err := req.RequireString("configJson")
	if err != nil {
		return mcp.NewToolResultError("configJson is required"), nil
	}
	targetGroup := argString(req, "targetGroup", "")
	removeMissing := argBool(req, "removeMissing", false)

	result := h.adapter.ApplyConfig([]byte(configJSON), targetGroup, removeMissing)
	if result.Error != "" {
		return mcp.NewToolResultError(result.Error), nil
	}
	return jsonResult(result)
}

func (h *handlers) exportConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	includeDisabled := argBool(req, "includeDisabled", true)
	group := argString(req, "group", "")

	data, err := h.adapter.ExportConfig(includeDisabled, group)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handlers) reloadConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := h.adapter.ReloadConfig()
	if !result.Success {
		return mcp.NewToolResultError(result.Error), nil
	}
	return mcp.NewToolResultText("config reloaded"), nil
}

func (h *handlers) getStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.adapter.GetStatus())
}
