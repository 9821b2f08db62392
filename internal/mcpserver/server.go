// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes imgnote tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/imgnote/internal/models"
	"github.com/starford/imgnote/internal/noteservice"
)

const layoutURI = "imgnote://layout"

// Server wraps the MCP server with imgnote tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *noteservice.Service
	tempDir string
}

// New creates a new MCP server with all imgnote tools registered. Downloaded
// images are spooled into tempDir (empty means os.TempDir()).
func New(svc *noteservice.Service, tempDir string) *Server {
	s := &Server{svc: svc, tempDir: tempDir}

	s.mcp = server.NewMCPServer(
		"imgnote",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List all categories, default category first."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("create_category",
		mcp.WithDescription("Create a new category."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
		mcp.WithString("color", mcp.Description("Hex color such as #ff8800 (optional)")),
	), s.createCategory)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, newest image first, optionally within one category."),
		mcp.WithString("category_id", mcp.Description("Optional category id to filter by")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("import_image",
		mcp.WithDescription("Create a note from an image file on the server's disk. "+
			"Read the layout via the get_layout tool or the imgnote://layout resource."),
		mcp.WithString("category_id", mcp.Required(), mcp.Description("Target category id (e.g. _default)")),
		mcp.WithString("source_path", mcp.Required(), mcp.Description("Absolute path of the image")),
		mcp.WithString("name", mcp.Description("Optional display name (defaults to the file name)")),
	), s.importImage)

	s.mcp.AddTool(mcp.NewTool("import_image_url",
		mcp.WithDescription("Create a note from an image at an http(s) URL or a base64 data URI."),
		mcp.WithString("category_id", mcp.Required(), mcp.Description("Target category id (e.g. _default)")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
		mcp.WithString("name", mcp.Description("Optional display name")),
	), s.importImageURL)

	s.mcp.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Move a note to another category. Returns the new image path."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Current category id")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Destination category id")),
	), s.moveNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note. Deleting a missing note succeeds."),
		mcp.WithString("category_id", mcp.Required(), mcp.Description("Category id")),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("export_store",
		mcp.WithDescription("Pack the store, or selected notes, into a .IMGNote archive."),
		mcp.WithString("dest", mcp.Required(), mcp.Description("Destination path; .IMGNote is appended when missing")),
		mcp.WithArray("notes",
			mcp.Description("Optional notes to export, as CATEGORY_ID/NOTE_ID strings"),
			mcp.WithStringItems(),
		),
	), s.exportStore)

	s.mcp.AddTool(mcp.NewTool("import_archive",
		mcp.WithDescription("Merge a .IMGNote archive into the store."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Archive path")),
		mcp.WithBoolean("skip_duplicates", mcp.Description("Skip notes whose content already exists (default true)")),
	), s.importArchive)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes by note or category name."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_layout",
		mcp.WithDescription("Returns the imgnote on-disk layout and archive rules."),
	), s.getLayout)

	// Resource: store layout.
	s.mcp.AddResource(
		mcp.NewResource(layoutURI, "Store Layout",
			mcp.WithResourceDescription("On-disk layout of categories, notes and archives."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
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

func (s *Server) listCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.svc.ListCategories(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(cats), nil
}

func (s *Server) createCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.CreateCategory(ctx, name, req.GetString("color", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(c), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.ListNotes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if cat := req.GetString("category_id", ""); cat != "" {
		filtered := notes[:0]
		for _, n := range notes {
			if n.CategoryID == cat {
				filtered = append(filtered, n)
			}
		}
		notes = filtered
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return jsonResult(notes), nil
}

func (s *Server) importImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat, err := req.RequireString("category_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := req.RequireString("source_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.ImportImage(ctx, cat, src, req.GetString("name", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n), nil
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.MoveNote(ctx, id, from, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(p), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat, err := req.RequireString("category_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteNote(ctx, cat, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s/%s", cat, id)), nil
}

func (s *Server) exportStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dest, err := req.RequireString("dest")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	if _, ok := args["notes"]; !ok {
		out, err := s.svc.ExportFull(ctx, dest)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}

	refs, err := models.ParseNoteRefs(req.GetStringSlice("notes", nil))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.ExportSubset(ctx, refs, dest)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) importArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := models.MergeOptions{SkipDuplicates: req.GetBool("skip_duplicates", true)}
	res, err := s.svc.ImportArchive(ctx, p, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getLayout(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LayoutContract), nil
}

func (s *Server) readLayoutResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      layoutURI,
			MIMEType: "text/markdown",
			Text:     LayoutContract,
		},
	}, nil
}
