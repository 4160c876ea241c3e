package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// listThreshold is the largest cache that `cache check` prints in full.
const listThreshold = 20

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the download cache",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Show the cached notes",
				Flags: []cli.Flag{outputFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					_, manifest, err := app.Export(app.Resolve(overrides(cmd)).Output)
					if err != nil {
						return fail(err)
					}
					st := manifest.Check()
					w := out(cmd)
					fmt.Fprintf(w, "Cache file: %s\n", st.Path)
					if !st.Exists {
						fmt.Fprintln(w, "No cache yet. Run 'getnotes download' first.")
						return nil
					}
					fmt.Fprintf(w, "Cached notes: %s\n", humanize.Comma(int64(st.Count)))
					if st.Count == 0 || st.Count > listThreshold {
						return nil
					}

					ids := make([]string, 0, len(st.Notes))
					for id := range st.Notes {
						ids = append(ids, id)
					}
					sort.Slice(ids, func(i, j int) bool {
						return st.Notes[ids[i]].CreatedAt > st.Notes[ids[j]].CreatedAt
					})
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tTITLE\tCREATED\tFOLDER")
					for _, id := range ids {
						n := st.Notes[id]
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, n.Title, n.CreatedAt, n.Folder)
					}
					return tw.Flush()
				},
			},
			{
				Name:  "clear",
				Usage: "Delete the cache so the next download checks every note again",
				Flags: []cli.Flag{
					outputFlag(),
					&cli.BoolFlag{Name: "confirm", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					_, manifest, err := app.Export(app.Resolve(overrides(cmd)).Output)
					if err != nil {
						return fail(err)
					}
					w := out(cmd)
					if !cmd.Bool("confirm") && !confirm(os.Stdin, w, "Clear the download cache?") {
						fmt.Fprintln(w, "Cancelled.")
						return nil
					}
					n, err := manifest.Clear()
					if err != nil {
						return fail(err)
					}
					fmt.Fprintf(w, "Cleared %d cached notes.\n", n)
					return nil
				},
			},
		},
	}
}

// confirm asks a yes/no question; anything but y/yes is a no.
func confirm(in io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
