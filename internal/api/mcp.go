package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/engram/internal/conversation"
	"github.com/kalambet/engram/internal/ledger"
	"github.com/kalambet/engram/internal/routing"
)

// mcpDefaultUser identifies sessions started over MCP, which has no
// caller identity of its own.
const mcpDefaultUser = "mcp"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Engine *conversation.Engine
	Ledger *ledger.Store
}

// NewMCPServer creates an MCP server with the capture loop tools and
// the inbox/areas resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"engram",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("engram captures content, discusses it, and files it into a personal knowledge vault."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("capture",
			mcp.WithDescription("Capture a URL, file path, or raw text: extract it, summarize it, and open a session for follow-up questions. Replaces any existing session."),
			mcp.WithString("source", mcp.Description("URL, local file path, or raw text to capture"), mcp.Required()),
			mcp.WithString("instruction", mcp.Description("Optional summary instruction, e.g. 'focus on the methodology'")),
			mcp.WithString("user", mcp.Description("Session owner (defaults to 'mcp')")),
		),
		mcpCapture(deps),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask a question about the currently captured content."),
			mcp.WithString("question", mcp.Description("The question"), mcp.Required()),
			mcp.WithString("user", mcp.Description("Session owner (defaults to 'mcp')")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("save_note",
			mcp.WithDescription("Save the current session into the vault. Give a project or an area to categorize it; otherwise it lands in the inbox and expires if never filed."),
			mcp.WithString("title", mcp.Description("Title override")),
			mcp.WithString("project", mcp.Description("Destination project title")),
			mcp.WithString("area", mcp.Description("Destination area title (needs an open output commitment)")),
			mcp.WithString("commitment", mcp.Description("New output commitment, when the area has none open")),
			mcp.WithString("user", mcp.Description("Session owner (defaults to 'mcp')")),
		),
		mcpSaveNote(deps),
	)

	s.AddTool(
		mcp.NewTool("session_status",
			mcp.WithDescription("Show the active session: what is captured and how far the conversation has gone."),
			mcp.WithString("user", mcp.Description("Session owner (defaults to 'mcp')")),
		),
		mcpSessionStatus(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"engram://inbox",
			"Inbox",
			mcp.WithResourceDescription("Provisional items awaiting categorization, with their expiry deadlines"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceInbox(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"engram://areas",
			"Knowledge Areas",
			mcp.WithResourceDescription("Knowledge areas and their open output commitments"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceAreas(deps),
	)

	return s
}

func mcpUser(req mcp.CallToolRequest) string {
	return req.GetString("user", mcpDefaultUser)
}

func mcpCapture(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source, err := req.RequireString("source")
		if err != nil {
			return mcpError("source is required"), nil
		}
		instruction := req.GetString("instruction", "")

		res, err := deps.Engine.Capture(ctx, mcpUser(req), source, instruction)
		if err != nil {
			return mcpError(fmt.Sprintf("capture failed: %v", err)), nil
		}

		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		answer, err := deps.Engine.Ask(ctx, mcpUser(req), question)
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}
		return mcpText(answer), nil
	}
}

func mcpSaveNote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts := routing.Options{
			Title:      req.GetString("title", ""),
			Project:    req.GetString("project", ""),
			Area:       req.GetString("area", ""),
			Commitment: req.GetString("commitment", ""),
		}
		if opts.Project != "" && opts.Area != "" {
			return mcpError("project and area are mutually exclusive"), nil
		}

		item, err := deps.Engine.Save(ctx, mcpUser(req), opts)
		if err != nil {
			return mcpError(fmt.Sprintf("save failed: %v", err)), nil
		}

		b, err := json.Marshal(itemToResponse(*item))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal item: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSessionStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := deps.Engine.Status(ctx, mcpUser(req))
		if err != nil {
			return mcpError(fmt.Sprintf("no session: %v", err)), nil
		}

		b, err := json.Marshal(st)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceInbox(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		items, err := deps.Ledger.ListProvisional()
		if err != nil {
			return nil, fmt.Errorf("failed to list inbox: %w", err)
		}

		out := make([]itemResponse, len(items))
		for i, item := range items {
			out[i] = itemToResponse(item)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal inbox: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "engram://inbox",
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceAreas(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		areas, err := deps.Ledger.ListAreas()
		if err != nil {
			return nil, fmt.Errorf("failed to list areas: %w", err)
		}

		type areaView struct {
			ID          string              `json:"id"`
			Title       string              `json:"title"`
			Status      string              `json:"status"`
			Commitments []ledger.Commitment `json:"commitments"`
		}

		out := make([]areaView, len(areas))
		for i, a := range areas {
			commitments, err := deps.Ledger.ListCommitments(a.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list commitments for %s: %w", a.Title, err)
			}
			var open []ledger.Commitment
			for _, c := range commitments {
				if !c.Fulfilled {
					open = append(open, c)
				}
			}
			out[i] = areaView{ID: a.ID, Title: a.Title, Status: a.Status, Commitments: open}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal areas: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "engram://areas",
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
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
