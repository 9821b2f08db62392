package internal

import (
	"context"
	"log/slog"

	"github.com/starford/imgnote/internal/mcpserver"
	"github.com/starford/imgnote/internal/models"
)

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	rt, err := setup(opts, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("MCP server starting", slog.String("store_path", rt.svc.BasePath()))
	return mcpserver.New(rt.svc, rt.cfg.Store.TempDir).ServeStdio()
}

// Export packs the store into out and returns the archive path. A non-empty
// notes list, given as CATEGORY_ID/NOTE_ID strings, exports only those notes.
func Export(ctx context.Context, out string, notes []string, opts ...Option) (string, error) {
	rt, err := setup(opts, nil)
	if err != nil {
		return "", err
	}
	defer rt.Close()

	if len(notes) == 0 {
		return rt.svc.ExportFull(ctx, out)
	}
	refs, err := models.ParseNoteRefs(notes)
	if err != nil {
		return "", err
	}
	return rt.svc.ExportSubset(ctx, refs, out)
}

// Import merges the archive at path into the store.
func Import(ctx context.Context, path string, skipDuplicates bool, opts ...Option) (models.MergeResult, error) {
	rt, err := setup(opts, nil)
	if err != nil {
		return models.MergeResult{}, err
	}
	defer rt.Close()

	return rt.svc.ImportArchive(ctx, path, models.MergeOptions{SkipDuplicates: skipDuplicates})
}

// Migrate copies the store under targetParent and makes the copy active.
func Migrate(ctx context.Context, targetParent string, opts ...Option) (string, error) {
	rt, err := setup(opts, nil)
	if err != nil {
		return "", err
	}
	defer rt.Close()

	return rt.svc.Migrate(ctx, targetParent)
}
