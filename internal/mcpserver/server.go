// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the todo index and the page store over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/outline/internal/apperr"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/pageservice"
)

// PageFormatURI addresses the page format resource.
const PageFormatURI = "outline://page-format"

// Server wraps the MCP server with outline tools.
type Server struct {
	mcp *server.MCPServer
	svc *pageservice.Service
}

// New creates a new MCP server with all outline tools registered.
func New(svc *pageservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Outline",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List todos in index order, optionally filtered by tag and state. "+
			"A todo's tags are its page name plus every page linked from it or its ancestor blocks."),
		mcp.WithString("tag", mcp.Description("Only todos carrying this tag (a page name)")),
		mcp.WithString("state", mcp.Description("open or done"), mcp.Enum("open", "done")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of todos (default 100)")),
		mcp.WithNumber("offset", mcp.Description("Number of todos to skip")),
	), s.listTodos)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read the raw content of a page."),
		mcp.WithString("namespace", mcp.Description("user (default) or journal"), mcp.Enum("user", "journal")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Page name")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the page names of a namespace."),
		mcp.WithString("namespace", mcp.Description("user (default) or journal"), mcp.Enum("user", "journal")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("get_page_format",
		mcp.WithDescription("Returns the outline page format and the todo tagging rules. "+
			"Call this before reading tags or writing pages."),
	), s.getPageFormat)

	s.mcp.AddResource(
		mcp.NewResource(PageFormatURI, "Page Format",
			mcp.WithResourceDescription("Outline page format and todo tagging rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPageFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func namespaceArg(req mcp.CallToolRequest) (models.PageNamespace, error) {
	raw := req.GetString("namespace", "")
	if raw == "" {
		return models.UserPage, nil
	}
	return models.ParseNamespace(raw)
}

func (s *Server) listTodos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListTodos(ctx, pageservice.TodoQuery{
		Tag:    req.GetString("tag", ""),
		State:  req.GetString("state", ""),
		Limit:  req.GetInt("limit", 0),
		Offset: req.GetInt("offset", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{"todos": items, "total": total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ns, err := namespaceArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id := models.PageID{Namespace: ns, Name: models.PageName(name)}
	page, err := s.svc.GetPage(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(page.Content), nil
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ns, err := namespaceArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages, err := s.svc.ListPages(ctx, ns)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	names := make([]string, len(pages))
	for i, p := range pages {
		names[i] = p.Name
	}
	out, _ := json.Marshal(names)
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPageFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PageFormatContract), nil
}

func (s *Server) readPageFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PageFormatURI,
			MIMEType: "text/markdown",
			Text:     PageFormatContract,
		},
	}, nil
}
