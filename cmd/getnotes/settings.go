package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/getnotes/internal/settings"
)

// unsetText marks keys that fall back to the built-in default.
const unsetText = "未设置（使用默认值）"

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Persist defaults for output, delay and page_size",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Set a value",
				ArgsUsage: "<key> <value>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return cli.Exit("usage: getnotes config set <key> <value>", 2)
					}
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					key, value := cmd.Args().Get(0), cmd.Args().Get(1)
					if err := app.Settings().Set(key, value); err != nil {
						return fail(err)
					}
					key, _ = settings.Normalize(key)
					stored, _ := app.Settings().Get(key)
					fmt.Fprintf(out(cmd), "%s = %s\n", key, stored)
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "Show one or every value",
				ArgsUsage: "[key]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					w := out(cmd)
					if cmd.NArg() > 0 {
						key, ok := settings.Normalize(cmd.Args().First())
						if !ok {
							return cli.Exit(fmt.Sprintf("unknown key %q", key), 2)
						}
						v, set := app.Settings().Get(key)
						if !set {
							v = unsetText
						}
						fmt.Fprintf(w, "%s = %s\n", key, v)
						return nil
					}
					all := app.Settings().All()
					for _, key := range settings.Keys() {
						v, set := all[key]
						if !set {
							v = unsetText
						}
						fmt.Fprintf(w, "%s = %s\n", key, v)
					}
					fmt.Fprintf(w, "File: %s\n", app.Settings().Path())
					return nil
				},
			},
			{
				Name:      "reset",
				Usage:     "Unset one value, or every value",
				ArgsUsage: "[key]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "confirm", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					w := out(cmd)
					if cmd.NArg() > 0 {
						if err := app.Settings().Remove(cmd.Args().First()); err != nil {
							return fail(err)
						}
						fmt.Fprintf(w, "Reset %s.\n", cmd.Args().First())
						return nil
					}
					if !cmd.Bool("confirm") && !confirm(os.Stdin, w, "Reset every setting?") {
						fmt.Fprintln(w, "Cancelled.")
						return nil
					}
					if err := app.Settings().Clear(); err != nil {
						return fail(err)
					}
					fmt.Fprintln(w, "All settings reset to defaults.")
					return nil
				},
			},
		},
	}
}
