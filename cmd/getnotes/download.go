package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/starford/getnotes/internal"
	"github.com/starford/getnotes/internal/index"
	"github.com/starford/getnotes/internal/syncer"
)

func outputFlag() cli.Flag {
	return &cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Export directory"}
}

// exportFlags are shared by every command that writes the export tree.
func exportFlags() []cli.Flag {
	return []cli.Flag{
		outputFlag(),
		&cli.FloatFlag{Name: "delay", Aliases: []string{"d"}, Usage: "Seconds to wait between requests"},
		&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Ignore the cache and download again"},
		&cli.BoolFlag{Name: "save-json", Aliases: []string{"j"}, Usage: "Also save the raw JSON of every note"},
		tokenFlag(),
	}
}

// overrides reads the flags that beat persisted settings.
func overrides(cmd *cli.Command) internal.Overrides {
	var o internal.Overrides
	if cmd.IsSet("output") {
		v := cmd.String("output")
		o.Output = &v
	}
	if cmd.IsSet("delay") {
		v := cmd.Float("delay")
		o.Delay = &v
	}
	if cmd.IsSet("page-size") {
		v := int(cmd.Int("page-size"))
		o.PageSize = &v
	}
	return o
}

// syncOptions resolves a run's options and opens the index it feeds.
// The returned closer is never nil.
func syncOptions(app *internal.App, cmd *cli.Command, rs internal.RunSettings) (syncer.Options, func(), error) {
	opts := app.SyncOptions(rs)
	opts.Force = cmd.Bool("force")
	if cmd.Bool("save-json") {
		opts.SaveJSON = true
	}
	db, err := app.OpenIndex()
	if err != nil {
		return opts, func() {}, err
	}
	if db == nil {
		return opts, func() {}, nil
	}
	opts.Indexer = db
	return opts, func() { db.Close() }, nil
}

func downloadCommand() *cli.Command {
	flags := append([]cli.Flag{
		&cli.BoolFlag{Name: "all", Usage: "Download every note"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum number of notes to download"},
		&cli.IntFlag{Name: "page-size", Usage: "Notes requested per page"},
	}, exportFlags()...)

	return &cli.Command{
		Name:  "download",
		Usage: "Download notes into Markdown folders",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.Client(cmd.String("token"))
			if err != nil {
				return fail(err)
			}

			rs := app.Resolve(overrides(cmd))
			store, manifest, err := app.Export(rs.Output)
			if err != nil {
				return fail(err)
			}
			opts, closeIndex, err := syncOptions(app, cmd, rs)
			if err != nil {
				return fail(err)
			}
			defer closeIndex()

			opts.Limit = app.Config().Sync.Limit
			if cmd.IsSet("limit") {
				opts.Limit = int(cmd.Int("limit"))
			}
			if cmd.Bool("all") {
				opts.Limit = 0
			}

			stats, err := syncer.NewNoteSync(client, store, manifest, app.Fetcher(), app.Logger(), opts).Run(ctx)
			w := out(cmd)
			fmt.Fprintf(w, "Processed %d notes: %d new, %d updated, %d cached", stats.Processed, stats.New, stats.Updated, stats.Cached)
			if stats.Failed > 0 {
				fmt.Fprintf(w, ", %d failed", stats.Failed)
			}
			fmt.Fprintln(w)
			if stats.DownloadErrors > 0 {
				fmt.Fprintf(w, "%d attachments could not be downloaded\n", stats.DownloadErrors)
			}
			if stats.Interrupted {
				fmt.Fprintln(w, "Interrupted; run the command again to resume.")
			}
			fmt.Fprintf(w, "Saved to %s\n", filepath.Join(store.Root(), "notes"))
			if err != nil {
				return fail(err)
			}
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search notes on the server",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Value: 1, Usage: "Result page, starting at 1"},
			&cli.IntFlag{Name: "page-size", Value: 10, Usage: "Results per page"},
			&cli.BoolFlag{Name: "local", Usage: "Search the local index instead of the server"},
			tokenFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := cmd.Args().First()
			if query == "" {
				return cli.Exit("a search query is required", 2)
			}
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("local") {
				return searchIndex(cmd, app, query, int(cmd.Int("page-size")))
			}

			client, err := app.Client(cmd.String("token"))
			if err != nil {
				return fail(err)
			}
			res, err := client.Search(ctx, query, int(cmd.Int("page")), int(cmd.Int("page-size")))
			if err != nil {
				return fail(err)
			}
			w := out(cmd)
			if len(res.Items) == 0 {
				fmt.Fprintf(w, "No notes found matching '%s'.\n", query)
				return nil
			}
			fmt.Fprintf(w, "%d results for '%s':\n", res.Total, query)
			for i, hit := range res.Items {
				title := hit.Title
				if title == "" {
					title = "(无标题)"
				}
				fmt.Fprintf(w, "%d. %s  [%s]  %s\n", i+1, title, hit.NoteID, hit.CreatedAt)
			}
			if res.HasMore {
				fmt.Fprintf(w, "More results: --page %d\n", cmd.Int("page")+1)
			}
			return nil
		},
	}
}

func searchIndex(cmd *cli.Command, app *internal.App, query string, limit int) error {
	db, err := app.OpenIndex()
	if err != nil {
		return fail(err)
	}
	if db == nil {
		return cli.Exit("the local index is disabled (index.enabled: false)", 1)
	}
	defer db.Close()
	return printIndexResults(cmd, db, query, limit)
}

func printIndexResults(cmd *cli.Command, db *index.DB, query string, limit int) error {
	results, err := db.Search(query, limit)
	if err != nil {
		return fail(err)
	}
	w := out(cmd)
	if len(results) == 0 {
		fmt.Fprintln(w, "No local notes found.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s  (%s)\n", i+1, r.Title, r.Path)
		if r.Snippet != "" {
			fmt.Fprintf(w, "   %s\n", r.Snippet)
		}
	}
	return nil
}
