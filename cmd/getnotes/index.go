package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/starford/getnotes/internal"
	"github.com/starford/getnotes/internal/index"
	"github.com/starford/getnotes/internal/storage"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Maintain the local full-text index of the export tree",
		Commands: []*cli.Command{
			{
				Name:  "rebuild",
				Usage: "Index new and changed notes, drop removed ones",
				Flags: []cli.Flag{outputFlag()},
				Action: withIndex(func(ctx context.Context, cmd *cli.Command, app *internal.App, db *index.DB, store *storage.FS) error {
					if err := index.Sync(db, store, app.Logger()); err != nil {
						return fail(err)
					}
					n, err := db.Count()
					if err != nil {
						return fail(err)
					}
					fmt.Fprintf(out(cmd), "Indexed %d notes from %s\n", n, store.Root())
					return nil
				}),
			},
			{
				Name:      "search",
				Usage:     "Search the downloaded notes",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					outputFlag(),
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum number of results"},
				},
				Action: withIndex(func(ctx context.Context, cmd *cli.Command, app *internal.App, db *index.DB, _ *storage.FS) error {
					query := cmd.Args().First()
					if query == "" {
						return cli.Exit("a search query is required", 2)
					}
					return printIndexResults(cmd, db, query, int(cmd.Int("limit")))
				}),
			},
			{
				Name:  "watch",
				Usage: "Keep the index current while files change",
				Flags: []cli.Flag{outputFlag()},
				Action: withIndex(func(ctx context.Context, cmd *cli.Command, app *internal.App, db *index.DB, store *storage.FS) error {
					if err := index.Sync(db, store, app.Logger()); err != nil {
						return fail(err)
					}
					w := out(cmd)
					fmt.Fprintf(w, "Watching %s (Ctrl-C to stop)\n", store.Root())
					err := index.Watch(ctx, db, store, store.Root(), app.Logger(), func(kind, path string) {
						fmt.Fprintf(w, "%s %s\n", kind, path)
					})
					if err != nil && ctx.Err() == nil {
						return fail(err)
					}
					return nil
				}),
			},
		},
	}
}

type indexAction func(ctx context.Context, cmd *cli.Command, app *internal.App, db *index.DB, store *storage.FS) error

// withIndex opens the export tree and the index around fn.
func withIndex(fn indexAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		db, err := app.OpenIndex()
		if err != nil {
			return fail(err)
		}
		if db == nil {
			return cli.Exit("the local index is disabled (index.enabled: false)", 1)
		}
		defer db.Close()

		store, _, err := app.Export(app.Resolve(overrides(cmd)).Output)
		if err != nil {
			return fail(err)
		}
		return fn(ctx, cmd, app, db, store)
	}
}
