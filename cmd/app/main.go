package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/imgnote/internal"
	pkgconfig "github.com/starford/imgnote/pkg/config"
)

// loadConfig reads the config named by --config, falling back to the
// built-in defaults when the file does not exist.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func exportArchive(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := internal.Export(ctx, cmd.String("out"), cmd.StringSlice("note"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Println(out)
	return nil
}

func importArchive(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("import: expected exactly one archive path")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	res, err := internal.Import(ctx, cmd.Args().First(), !cmd.Bool("keep-duplicates"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Printf("added %d, skipped %d\n", res.Added, res.Skipped)
	return nil
}

func migrateStore(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("migrate: expected exactly one target directory")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dest, err := internal.Migrate(ctx, cmd.Args().First(),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Println(dest)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "imgnote",
		Usage:  "Local image-note archive with categories, portable archives and deduplicating import",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, file watcher and event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:   "export",
				Usage:  "Pack the store, or selected notes, into a .IMGNote archive",
				Action: exportArchive,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Aliases:  []string{"o"},
						Usage:    "Destination archive path",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "note",
						Usage: "Note to export as CATEGORY_ID/NOTE_ID (repeatable)",
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Merge a .IMGNote archive into the store",
				ArgsUsage: "FILE",
				Action:    importArchive,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "keep-duplicates",
						Usage: "Import notes whose content already exists",
					},
				},
			},
			{
				Name:      "migrate",
				Usage:     "Copy the store into DIR/dataBase and switch to it",
				ArgsUsage: "DIR",
				Action:    migrateStore,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
