package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/brainreset/internal"
	"github.com/starford/brainreset/internal/apperr"
	"github.com/starford/brainreset/internal/validate"
	pkgconfig "github.com/starford/brainreset/pkg/config"
)

var version = "dev"

// loadConfig reads the config file over the defaults. A missing file keeps
// the defaults; the returned options only enable hot reload for a file that
// exists.
func loadConfig(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}
	if found {
		opts = append(opts, internal.WithConfigPath(configPath))
	}
	return opts, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithLogOutput(os.Stderr))

	if err := internal.RunMCP(ctx, opts...); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}

	return nil
}

func generate(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithLogOutput(os.Stderr))

	raw := validate.RawRequest{
		ServerURL:  cmd.String("server-url"),
		CraftToken: cmd.String("token"),
	}
	if cmd.IsSet("days") {
		days := int(cmd.Int("days"))
		raw.Days = &days
	}

	res, err := internal.Generate(ctx, uuid.NewString(), raw, opts...)
	if err != nil {
		return errors.New(apperr.SafeMessage(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func main() {
	cmd := &cli.Command{
		Name:    "brainreset",
		Usage:   "Turn recent Craft daily notes into an AI reflection saved back to Craft",
		Version: version,
		Action:  serve,
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
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the brain reset tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:   "generate",
				Usage:  "Run one brain reset and print the result",
				Action: generate,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "server-url",
						Usage:    "Craft Connect link",
						Required: true,
						Sources:  cli.EnvVars("CRAFT_SERVER_URL"),
					},
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Craft API token",
						Required: true,
						Sources:  cli.EnvVars("CRAFT_TOKEN"),
					},
					&cli.IntFlag{
						Name:  "days",
						Usage: "Days to cover (1-30)",
						Value: validate.DefaultDays,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
