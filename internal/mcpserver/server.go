// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Sowilo search and index tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/search"
)

const (
	serverName    = "Sowilo"
	serverVersion = "1.0.0"

	searchModesURI = "sowilo://search-modes"

	defaultLimit = 20
)

// ReindexFunc rebuilds the index and the derived tables.
type ReindexFunc func(ctx context.Context) (*models.IndexStats, *models.DerivedStats, error)

// Server wraps the MCP server with Sowilo tools.
type Server struct {
	mcp          *server.MCPServer
	engine       *search.Engine
	store        index.Reader
	reindex      ReindexFunc
	defaultLimit int
	logger       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithDefaultLimit sets the result limit used when search_notes gets none.
func WithDefaultLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// New creates a new MCP server with all tools registered. The reindex tool
// is only offered when reindex is non-nil.
func New(engine *search.Engine, store index.Reader, reindex ReindexFunc, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:       engine,
		store:        store,
		reindex:      reindex,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Search a Markdown vault by title or path, then widen the result set "+
			"through links, daily-note mentions and co-occurrence. Read "+searchModesURI+" for how modes score."),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes by title or path with optional expansion through the link graph, "+
			"daily notes, or co-occurrence. Returns JSON results ordered by score."),
		mcp.WithString("query", mcp.Description("Case-insensitive text matched against title and path. Empty matches every note.")),
		mcp.WithString("mode", mcp.Description("Expansion mode"), mcp.Enum(search.ModeNames()...), mcp.DefaultString(search.ModeDirect.String())),
		mcp.WithNumber("hops", mcp.Description("Link distance for neighbourhood mode, 0 selects the default"), mcp.DefaultNumber(search.DefaultHops), mcp.Min(0)),
		mcp.WithNumber("days", mcp.Description("Lookback window in days for temporal mode, 0 selects the default"), mcp.DefaultNumber(search.DefaultDays), mcp.Min(0)),
		mcp.WithNumber("min_shared", mcp.Description("Minimum shared daily notes for cooccurrence mode, 0 selects the default"), mcp.DefaultNumber(search.DefaultMinShared), mcp.Min(0)),
		mcp.WithString("note_type", mcp.Description("Only return notes of this type (daily, weekly, monthly, task, project, zettel, none)")),
		mcp.WithString("path_prefix", mcp.Description("Only match notes whose path starts with this prefix")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results"), mcp.Min(0)),
		mcp.WithBoolean("temporal_boost", mcp.Description("Boost recently active notes"), mcp.DefaultBool(false)),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note, with or without the .md extension")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("find_orphans",
		mcp.WithDescription("List notes with no incoming links."),
		mcp.WithString("note_type", mcp.Description("Only return orphans of this type")),
	), s.findOrphans)

	s.mcp.AddTool(mcp.NewTool("index_stats",
		mcp.WithDescription("Report note, link and activity counts for the index."),
	), s.indexStats)

	if s.reindex != nil {
		s.mcp.AddTool(mcp.NewTool("reindex",
			mcp.WithDescription("Rebuild the index from the vault and recompute activity and co-occurrence."),
		), s.runReindex)
	}

	s.mcp.AddResource(
		mcp.NewResource(searchModesURI, "Search Modes",
			mcp.WithResourceDescription("How each search mode expands and scores results."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSearchModesResource,
	)

	return s
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := search.ParseMode(req.GetString("mode", search.ModeDirect.String()))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q := search.Query{
		Text:          req.GetString("query", ""),
		Type:          noteType(req.GetString("note_type", "")),
		PathPrefix:    req.GetString("path_prefix", ""),
		Expansion:     search.NewExpansion(mode, req.GetInt("hops", 0), req.GetInt("days", 0), req.GetInt("min_shared", 0)),
		Limit:         req.GetInt("limit", s.defaultLimit),
		TemporalBoost: req.GetBool("temporal_boost", false),
	}
	results, err := s.engine.Search(ctx, q)
	if err != nil {
		return s.toolError("search_notes", err), nil
	}
	if results == nil {
		results = []search.Result{}
	}
	return jsonResult(results)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := index.FindNote(ctx, s.store, path)
	if err != nil {
		return s.toolError("get_backlinks", err), nil
	}
	if target == nil {
		return mcp.NewToolResultError(fmt.Sprintf("note not found: %s", path)), nil
	}

	out, err := index.Backlinks(ctx, s.store, target.ID)
	if err != nil {
		return s.toolError("get_backlinks", err), nil
	}
	return jsonResult(out)
}

func (s *Server) findOrphans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orphans, err := s.store.FindOrphans(ctx)
	if err != nil {
		return s.toolError("find_orphans", err), nil
	}
	typ := noteType(req.GetString("note_type", ""))
	paths := make([]string, 0, len(orphans))
	for _, n := range orphans {
		if typ != "" && n.Type != typ {
			continue
		}
		paths = append(paths, n.Path)
	}
	return jsonResult(paths)
}

func (s *Server) indexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return s.toolError("index_stats", err), nil
	}
	return jsonResult(stats)
}

func (s *Server) runReindex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, der, err := s.reindex(ctx)
	if err != nil {
		return s.toolError("reindex", err), nil
	}
	return jsonResult(struct {
		Index   *models.IndexStats   `json:"index"`
		Derived *models.DerivedStats `json:"derived"`
	}{idx, der})
}

func (s *Server) readSearchModesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      searchModesURI,
			MIMEType: "text/markdown",
			Text:     SearchModesGuide,
		},
	}, nil
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("mcp: tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError(err.Error())
}

func noteType(s string) models.NoteType {
	if s == "" {
		return ""
	}
	return models.ParseNoteType(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

// Listen serves MCP over in and out until ctx is done or in is closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp: listening")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}
