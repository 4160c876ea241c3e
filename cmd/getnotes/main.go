package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/getnotes/internal"
	"github.com/starford/getnotes/internal/apperr"
	"github.com/starford/getnotes/internal/getnotes"
	pkgconfig "github.com/starford/getnotes/pkg/config"
)

const version = "1.0.0"

// defaultConfigFile is read when it exists and --config is not given.
const defaultConfigFile = "~/.getnotes-cli/getnotes.yaml"

// loadApp builds the application from the --config file, when there is one.
func loadApp(cmd *cli.Command) (*internal.App, error) {
	cfg := internal.NewDefaultConfig()

	if path := cmd.String("config"); path != "" {
		if err := pkgconfig.Load(internal.ExpandHome(path), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if _, err := pkgconfig.LoadOptional(internal.ExpandHome(defaultConfigFile), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
	}
	return internal.New(internal.WithConfig(cfg))
}

// fail maps known failures to an exit error with a remediation hint.
func fail(err error) error {
	var apiErr *getnotes.APIError
	var httpErr *getnotes.HTTPError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrNotAuthenticated):
		return cli.Exit(fmt.Sprintf("not logged in (%v)\nrun 'getnotes login' first", err), 1)
	case errors.Is(err, apperr.ErrCredentialExpired):
		return cli.Exit(fmt.Sprintf("login expired (%v)\nrun 'getnotes login' again", err), 1)
	case errors.Is(err, apperr.ErrInvalidSetting):
		return cli.Exit(err.Error(), 2)
	case errors.As(err, &httpErr), errors.As(err, &apiErr):
		return cli.Exit(fmt.Sprintf("%v\nthe token may have expired, run 'getnotes login' again", err), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// out is where commands print their results.
func out(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func main() {
	cmd := &cli.Command{
		Name:    "getnotes",
		Usage:   "Export, search and write Get Notes (Get 笔记) from the terminal or an MCP client",
		Version: version,
		Writer:  os.Stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Sources: cli.EnvVars("GETNOTES_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			statusCommand(),
			downloadCommand(),
			searchCommand(),
			createCommand(),
			cacheCommand(),
			notebookCommand(),
			subscribeCommand(),
			configCommand(),
			indexCommand(),
			mcpCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
