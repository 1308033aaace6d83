// Package mcpserver exposes the transcript history as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwulff/steno/history/internal/history"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Backend is the subset of the daemon client the tools call.
type Backend interface {
	FetchHistory(ctx context.Context) ([]history.Entry, error)
	CopyEntry(ctx context.Context, id int64) error
	DeleteEntry(ctx context.Context, id int64) error
	ToggleFavorite(ctx context.Context, id int64) error
	AddEntry(ctx context.Context, e history.Entry) (history.Entry, error)
}

// Server wraps an MCP server whose tools operate on the history.
type Server struct {
	mcp     *server.MCPServer
	backend Backend
	log     *zap.Logger
}

// New creates a Server with every history tool registered.
func New(backend Backend, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		mcp: server.NewMCPServer("steno-history", version,
			server.WithToolCapabilities(false),
		),
		backend: backend,
		log:     log,
	}
	s.registerTools()
	return s
}

// ServeStdio serves MCP requests on stdin/stdout until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List transcript history entries, newest first. Optionally filter by a case-insensitive search query or to favorites only."),
		mcp.WithString("query", mcp.Description("Substring to search for in the entry text (polished if present)")),
		mcp.WithBoolean("favorites_only", mcp.Description("Only return favorited entries")),
	), s.handleListHistory)

	s.mcp.AddTool(mcp.NewTool("toggle_favorite",
		mcp.WithDescription("Flip the favorite flag of a history entry."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Entry id")),
	), s.handleToggleFavorite)

	s.mcp.AddTool(mcp.NewTool("delete_entry",
		mcp.WithDescription("Delete a history entry."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Entry id")),
	), s.handleDeleteEntry)

	s.mcp.AddTool(mcp.NewTool("copy_entry",
		mcp.WithDescription("Copy a history entry's text (polished if present) to the clipboard."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Entry id")),
	), s.handleCopyEntry)

	s.mcp.AddTool(mcp.NewTool("add_entry",
		mcp.WithDescription("Add a transcript to the history."),
		mcp.WithString("transcript", mcp.Required(), mcp.Description("Raw transcript text")),
		mcp.WithString("polished", mcp.Description("Polished version of the transcript")),
	), s.handleAddEntry)
}

func (s *Server) handleListHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.backend.FetchHistory(ctx)
	if err != nil {
		return s.toolError("list_history", err), nil
	}

	mode := history.FilterAll
	if req.GetBool("favorites_only", false) {
		mode = history.FilterFavorites
	}
	filtered := history.Filter(entries, mode, req.GetString("query", ""))

	return jsonResult(filtered)
}

func (s *Server) handleToggleFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.byID(ctx, req, "toggle_favorite", s.backend.ToggleFavorite, "Toggled favorite on entry %d")
}

func (s *Server) handleDeleteEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.byID(ctx, req, "delete_entry", s.backend.DeleteEntry, "Deleted entry %d")
}

func (s *Server) handleCopyEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.byID(ctx, req, "copy_entry", s.backend.CopyEntry, "Copied entry %d to the clipboard")
}

func (s *Server) byID(ctx context.Context, req mcp.CallToolRequest, tool string, fn func(context.Context, int64) error, done string) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := fn(ctx, int64(id)); err != nil {
		return s.toolError(tool, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(done, id)), nil
}

func (s *Server) handleAddEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transcript, err := req.RequireString("transcript")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if transcript == "" {
		return mcp.NewToolResultError("transcript must not be empty"), nil
	}

	polished := req.GetString("polished", "")
	added, err := s.backend.AddEntry(ctx, history.Entry{
		Transcript: transcript,
		Polished:   polished,
		PolishUsed: polished != "",
	})
	if err != nil {
		return s.toolError("add_entry", err), nil
	}
	return jsonResult(added)
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.log.Warn("mcp tool failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", tool, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
