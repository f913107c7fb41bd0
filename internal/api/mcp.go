package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/paris/internal/chat"
	"github.com/kalambet/paris/internal/profile"
	"github.com/kalambet/paris/internal/session"
)

const schemaResourceURI = "paris://schema"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Chat  ChatService
	Store session.Store // nil in stateless mode; get_session then reports an error
}

// NewMCPServer creates an MCP server exposing the conversation as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"paris",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("paris collects a tech professional's or researcher's profile through conversation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send one user message to Paris and get the reply plus the fields collected so far."),
			mcp.WithString("role", mcp.Description("User role"), mcp.Required(), mcp.Enum("professional", "researcher", "pro", "chercheur")),
			mcp.WithString("message", mcp.Description("The user's message"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Conversation identifier (default \"default\")")),
		),
		mcpSendMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("get_session",
			mcp.WithDescription("Return the stored profile fields and conversation history for a session."),
			mcp.WithString("role", mcp.Description("User role"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Conversation identifier (default \"default\")")),
		),
		mcpGetSession(deps),
	)

	s.AddResource(
		mcp.NewResource(
			schemaResourceURI,
			"Profile Schema",
			mcp.WithResourceDescription("Profile fields collected for each role"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSchema,
	)

	return s
}

func mcpSendMessage(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		role, err := req.RequireString("role")
		if err != nil {
			return mcpError("role is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		resp, err := deps.Chat.Turn(ctx, chat.Request{
			Message:   message,
			Role:      role,
			SessionID: req.GetString("session_id", ""),
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		fields := resp.Fields
		if fields == nil {
			fields = profile.FieldSet{}
		}
		return mcpJSON(chatResponse{
			Response:   resp.Reply,
			Trajectory: fields,
			Language:   resp.Language,
			SessionID:  resp.SessionID,
		})
	}
}

func mcpGetSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Store == nil {
			return mcpError("sessions are not stored in stateless mode"), nil
		}
		rawRole, err := req.RequireString("role")
		if err != nil {
			return mcpError("role is required"), nil
		}
		role, err := profile.ParseRole(rawRole)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		key := session.NewKey(req.GetString("session_id", ""), role)

		s, err := deps.Store.Get(ctx, key)
		if errors.Is(err, session.ErrNotFound) {
			return mcpError(fmt.Sprintf("no session for %s", key)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load session: %v", err)), nil
		}
		return mcpJSON(newSessionView(key, s))
	}
}

func mcpResourceSchema(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	schema := make(map[profile.Role][]string, len(profile.Roles()))
	for _, r := range profile.Roles() {
		schema[r] = profile.RequiredFields(r)
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
