package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/mdbook-backlinks/internal"
	pkgconfig "github.com/starford/mdbook-backlinks/pkg/config"
)

func loadConfig(cmd *cli.Command) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return []internal.Option{internal.WithConfig(cfg)}, nil
}

func preprocess(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Preprocess(ctx, opts...); err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}
	return nil
}

func supports(_ context.Context, cmd *cli.Command) error {
	renderer := cmd.Args().First()
	if renderer == "" {
		return fmt.Errorf("supports: renderer argument is required")
	}
	if !internal.Supports(renderer) {
		return cli.Exit("", 1)
	}
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Serve(ctx, opts...); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.ServeMCP(ctx, opts...); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "mdbook-backlinks",
		Usage:  "mdbook preprocessor appending a list of linking chapters to every chapter",
		Action: preprocess,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional YAML config file",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "supports",
				Usage:     "Check whether a renderer is supported",
				ArgsUsage: "<renderer>",
				Action:    supports,
			},
			{
				Name:   "serve",
				Usage:  "Serve the persisted backlink graph over HTTP",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the persisted backlink graph over MCP on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
