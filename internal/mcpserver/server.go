// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes depot tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/depot/internal/apperr"
	"github.com/starford/depot/internal/media"
)

const (
	categoriesURI  = "depot://categories"
	uploadGuideURI = "depot://upload-guide"
)

// Server wraps the MCP server with depot tools.
type Server struct {
	mcp *server.MCPServer
	svc *media.Service
}

// New creates a new MCP server with all depot tools registered.
func New(svc *media.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Depot",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("upload_file",
		mcp.WithDescription("Store a file under an allowed category and return its public URL. "+
			"The source is a base64 data URI or a public http(s) URL. Read the rules first via "+
			"the "+uploadGuideURI+" resource."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Target category (see list_categories)")),
		mcp.WithString("url", mcp.Required(), mcp.Description("data: URI or http(s) URL of the file")),
		mcp.WithString("filename", mcp.Description("Optional original filename; its extension is kept")),
	), s.uploadFile)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List stored files, newest first, optionally within one category."),
		mcp.WithString("category", mcp.Description("Optional category (empty for all)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of files (default 50)")),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Find stored files whose original or stored name contains the query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchFiles)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the categories uploads may target, with file counts."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("file_info",
		mcp.WithDescription("Return the stored record of one file."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category of the file")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Stored filename (e.g. 1718000000000-a1b2c3d4.png)")),
	), s.fileInfo)

	s.mcp.AddResource(
		mcp.NewResource(categoriesURI, "Allowed Categories",
			mcp.WithResourceDescription("Categories accepted by uploads, as JSON."),
			mcp.WithMIMEType("application/json"),
		),
		s.readCategoriesResource,
	)
	s.mcp.AddResource(
		mcp.NewResource(uploadGuideURI, "Upload Guide",
			mcp.WithResourceDescription("How uploads are validated, named and served."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readUploadGuideResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat := req.GetString("category", "")
	limit := req.GetInt("limit", 50)

	items, total, err := s.svc.List(ctx, cat, limit, 0)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidCategory) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown category: %s", cat)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"files": items, "total": total}), nil
}

func (s *Server) searchFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no files found"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) listCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := s.svc.CategoryInfos(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(infos), nil
}

func (s *Server) fileInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Info(ctx, cat, name)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", cat, name)), nil
		case errors.Is(err, apperr.ErrInvalidCategory):
			return mcp.NewToolResultError(fmt.Sprintf("unknown category: %s", cat)), nil
		case errors.Is(err, apperr.ErrInvalidName):
			return mcp.NewToolResultError(fmt.Sprintf("invalid name: %s", name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec), nil
}

func (s *Server) readCategoriesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(s.svc.Categories().Names())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      categoriesURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}

func (s *Server) readUploadGuideResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uploadGuideURI,
			MIMEType: "text/markdown",
			Text:     UploadGuide(s.svc.Categories()),
		},
	}, nil
}
