package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/imgnote/internal/models"
	"github.com/starford/imgnote/internal/noteservice"
	"github.com/starford/imgnote/internal/testutil"
)

func testServer(t *testing.T) (*Server, *noteservice.Service) {
	t.Helper()
	svc := noteservice.New(testutil.TestStore(t),
		noteservice.WithIndex(testutil.TestDB(t)),
		noteservice.WithLogger(testutil.Logger()),
	)
	return New(svc, t.TempDir()), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so dispatch to the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_categories":
		result, err = srv.listCategories(ctx, req)
	case "create_category":
		result, err = srv.createCategory(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "import_image":
		result, err = srv.importImage(ctx, req)
	case "import_image_url":
		result, err = srv.importImageURL(ctx, req)
	case "move_note":
		result, err = srv.moveNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "export_store":
		result, err = srv.exportStore(ctx, req)
	case "import_archive":
		result, err = srv.importArchive(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "get_layout":
		result, err = srv.getLayout(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeResult[T any](t *testing.T, r *mcp.CallToolResult) T {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var v T
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return v
}

func TestCreateCategoryAndList(t *testing.T) {
	srv, _ := testServer(t)

	c := decodeResult[models.Category](t, callTool(t, srv, "create_category", map[string]any{
		"name": "Travel", "color": "#ff8800",
	}))
	if c.Name != "Travel" || c.Color != "#ff8800" {
		t.Errorf("created = %+v", c)
	}

	cats := decodeResult[[]models.Category](t, callTool(t, srv, "list_categories", map[string]any{}))
	if len(cats) != 2 || cats[0].ID != models.DefaultCategoryID {
		t.Errorf("categories = %+v", cats)
	}

	r := callTool(t, srv, "create_category", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing name")
	}
}

func TestImportMoveDelete(t *testing.T) {
	srv, _ := testServer(t)
	src := testutil.WriteImage(t, "sunset.png", testutil.PNG)

	n := decodeResult[models.Note](t, callTool(t, srv, "import_image", map[string]any{
		"category_id": models.DefaultCategoryID,
		"source_path": src,
	}))
	if n.Name != "sunset" {
		t.Errorf("name = %q", n.Name)
	}

	c := decodeResult[models.Category](t, callTool(t, srv, "create_category", map[string]any{"name": "Dest"}))
	r := callTool(t, srv, "move_note", map[string]any{"note_id": n.ID, "from": n.CategoryID, "to": c.ID})
	if r.IsError {
		t.Fatalf("move: %s", resultText(r))
	}
	if want := filepath.Join(c.ID, n.ID, "image.png"); !strings.HasSuffix(resultText(r), want) {
		t.Errorf("image path = %q, want suffix %q", resultText(r), want)
	}

	notes := decodeResult[[]models.Note](t, callTool(t, srv, "list_notes", map[string]any{"category_id": c.ID}))
	if len(notes) != 1 || notes[0].ID != n.ID {
		t.Errorf("notes in dest = %+v", notes)
	}

	r = callTool(t, srv, "delete_note", map[string]any{"category_id": c.ID, "note_id": n.ID})
	if r.IsError {
		t.Fatalf("delete: %s", resultText(r))
	}
	r = callTool(t, srv, "list_notes", map[string]any{})
	if resultText(r) != "no notes found" {
		t.Errorf("list after delete = %q", resultText(r))
	}
}

func TestImportImageMissingSource(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "import_image", map[string]any{
		"category_id": models.DefaultCategoryID,
		"source_path": filepath.Join(t.TempDir(), "nope.png"),
	})
	if !r.IsError {
		t.Error("expected error for missing source")
	}
}

func TestExportAndImportArchive(t *testing.T) {
	srv, svc := testServer(t)
	a := testutil.SeedNote(t, svc.Store(), models.DefaultCategoryID, "a", []byte("a"))
	testutil.SeedNote(t, svc.Store(), models.DefaultCategoryID, "b", []byte("b"))

	r := callTool(t, srv, "export_store", map[string]any{
		"dest":  filepath.Join(t.TempDir(), "one"),
		"notes": []any{a.CategoryID + "/" + a.ID},
	})
	if r.IsError {
		t.Fatalf("export: %s", resultText(r))
	}
	archivePath := resultText(r)
	if !strings.HasSuffix(archivePath, models.ArchiveExt) {
		t.Errorf("archive path = %q", archivePath)
	}

	other, _ := testServer(t)
	res := decodeResult[models.MergeResult](t, callTool(t, other, "import_archive", map[string]any{"path": archivePath}))
	if res != (models.MergeResult{Added: 1}) {
		t.Errorf("import = %+v", res)
	}
	res = decodeResult[models.MergeResult](t, callTool(t, other, "import_archive", map[string]any{"path": archivePath}))
	if res != (models.MergeResult{Skipped: 1}) {
		t.Errorf("reimport = %+v", res)
	}
	res = decodeResult[models.MergeResult](t, callTool(t, other, "import_archive", map[string]any{
		"path": archivePath, "skip_duplicates": false,
	}))
	if res != (models.MergeResult{Added: 1}) {
		t.Errorf("keep-duplicates import = %+v", res)
	}
}

func TestExportStoreBadRef(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "export_store", map[string]any{
		"dest":  filepath.Join(t.TempDir(), "x"),
		"notes": []any{"no-slash"},
	})
	if !r.IsError {
		t.Error("expected error for malformed note reference")
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "import_image", map[string]any{
		"category_id": models.DefaultCategoryID,
		"source_path": testutil.WriteImage(t, "harbour.png", testutil.PNG),
	})

	r := callTool(t, srv, "search_notes", map[string]any{"query": "harbour"})
	if !strings.Contains(resultText(r), "harbour") {
		t.Errorf("search = %q", resultText(r))
	}
}

func TestImportImageURL_DataURI(t *testing.T) {
	srv, _ := testServer(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testutil.PNG)

	n := decodeResult[models.Note](t, callTool(t, srv, "import_image_url", map[string]any{
		"category_id": models.DefaultCategoryID,
		"url":         uri,
		"name":        "pasted",
	}))
	if n.Name != "pasted" || n.ImageFile != "image.png" {
		t.Errorf("note = %+v", n)
	}
}

func TestImportImageURL_Rejected(t *testing.T) {
	srv, _ := testServer(t)
	cases := map[string]string{
		"not an image":  "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello")),
		"bad mime":      "data:text/plain;base64,aGVsbG8=",
		"not base64":    "data:image/png,raw",
		"loopback":      "http://127.0.0.1/x.png",
		"bad scheme":    "ftp://example.com/x.png",
		"metadata host": "http://169.254.169.254/latest",
	}
	for name, uri := range cases {
		r := callTool(t, srv, "import_image_url", map[string]any{
			"category_id": models.DefaultCategoryID,
			"url":         uri,
		})
		if !r.IsError {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNameFromURL(t *testing.T) {
	if got := nameFromURL("https://example.com/pics/sunset.jpg?x=1"); got != "sunset" {
		t.Errorf("nameFromURL = %q", got)
	}
	if got := nameFromURL("data:image/png;base64,AA=="); !strings.HasPrefix(got, "image-") {
		t.Errorf("data URI name = %q", got)
	}
}

func TestLayoutResource(t *testing.T) {
	srv, _ := testServer(t)
	if got := resultText(callTool(t, srv, "get_layout", map[string]any{})); got != LayoutContract {
		t.Error("get_layout does not return the layout")
	}
	contents, err := srv.readLayoutResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != layoutURI || !strings.Contains(tc.Text, "category.json") {
		t.Errorf("resource = %+v", contents[0])
	}
}
