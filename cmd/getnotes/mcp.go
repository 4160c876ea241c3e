package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/starford/getnotes/internal"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the Get Notes tools to MCP clients",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Usage: "stdio or sse", Sources: cli.EnvVars("GETNOTES_MCP_TRANSPORT")},
			&cli.StringFlag{Name: "host", Usage: "Listen host for sse"},
			&cli.IntFlag{Name: "port", Usage: "Listen port for sse"},
			&cli.StringFlag{Name: "base-url", Usage: "Public URL advertised to sse clients"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			cfg := app.Config()
			if cmd.IsSet("transport") {
				cfg.MCP.Transport = cmd.String("transport")
			}
			if cmd.IsSet("host") {
				cfg.MCP.HTTP.Host = cmd.String("host")
			}
			if cmd.IsSet("port") {
				cfg.MCP.HTTP.Port = int(cmd.Int("port"))
			}
			if cmd.IsSet("base-url") {
				cfg.MCP.BaseURL = cmd.String("base-url")
			}

			opts := []internal.Option{internal.WithConfig(cfg)}
			if cfg.MCP.Transport == internal.TransportSSE {
				cfg.App.LogFormat = internal.LogFormatJSON
			}
			if err := internal.Run(ctx, opts...); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}
