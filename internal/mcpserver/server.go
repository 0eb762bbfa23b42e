// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note collection to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/lo"

	"github.com/starford/mimir/internal/engine"
	"github.com/starford/mimir/internal/filter"
	"github.com/starford/mimir/internal/models"
)

// noteSummary is the per-note shape returned by search and list tools.
type noteSummary struct {
	Path         string   `json:"path"`
	Tags         []string `json:"tags,omitempty"`
	Kind         string   `json:"kind"`
	LastModified int64    `json:"lastModified"`
}

// Server wraps the MCP server with tools over the live collection.
type Server struct {
	mcp    *server.MCPServer
	engine *engine.Engine
}

// New creates a new MCP server with all tools registered.
func New(eng *engine.Engine) *Server {
	s := &Server{engine: eng}

	s.mcp = server.NewMCPServer(
		"Mimir",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes with the same pipeline the UI uses: "+
			"category keywords (movies, series, youtube, images, audios), "+
			"date tokens (on:/before:/after:YYYY-MM-DD), and fuzzy text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("folder", mcp.Description("Optional top-level folder to scope the search")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full raw content of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_folders",
		mcp.WithDescription("List the top-level folders of the collection."),
	), s.listFolders)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

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

func summarize(n *models.Note) noteSummary {
	return noteSummary{
		Path:         n.Path,
		Tags:         n.Tags,
		Kind:         string(n.Kind()),
		LastModified: n.LastModified,
	}
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folder := filter.FolderAll
	if f, ferr := req.RequireString("folder"); ferr == nil && f != "" {
		folder = f
	}

	results, err := s.engine.Query(folder, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, _ := json.MarshalIndent(lo.Map(results, func(n *models.Note, _ int) noteSummary {
		return summarize(n)
	}), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, ok := s.engine.NoteByPath(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(note.RawContent), nil
}

func (s *Server) listFolders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folders := s.engine.Folders()
	if len(folders) == 0 {
		return mcp.NewToolResultText("no folders"), nil
	}
	return mcp.NewToolResultText(strings.Join(folders, "\n")), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	var paths []string
	for _, n := range s.engine.Notes() {
		if folder != "" && !strings.HasPrefix(n.Path, folder+"/") {
			continue
		}
		paths = append(paths, n.Path)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no notes"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}
