package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/getnotes/internal/getnotes"
	"github.com/starford/getnotes/internal/models"
	"github.com/starford/getnotes/internal/syncer"
)

// notebookKind is the difference between own and subscribed knowledge bases.
type notebookKind struct {
	name       string
	label      string
	subscribed bool
}

func (k notebookKind) list(ctx context.Context, c *getnotes.Client) ([]models.Notebook, error) {
	if k.subscribed {
		return c.ListSubscribedNotebooks(ctx)
	}
	return c.ListNotebooks(ctx)
}

func notebookCommand() *cli.Command {
	return notebookCommands(notebookKind{name: "notebook", label: "notebook"})
}

func subscribeCommand() *cli.Command {
	return notebookCommands(notebookKind{name: "subscribe", label: "subscribed notebook", subscribed: true})
}

func notebookCommands(k notebookKind) *cli.Command {
	usage := "Export your knowledge bases (notebooks)"
	if k.subscribed {
		usage = "Export the knowledge bases you subscribe to"
	}
	return &cli.Command{
		Name:  k.name,
		Usage: usage,
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List " + k.label + "s",
				Flags:  []cli.Flag{tokenFlag()},
				Action: k.listAction,
			},
			{
				Name:  "download",
				Usage: "Download one " + k.label,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Name, matched case-insensitively"},
					&cli.StringFlag{Name: "id", Usage: "Notebook ID (id_alias) from list"},
				}, exportFlags()...),
				Action: k.downloadAction,
			},
			{
				Name:  "download-all",
				Usage: "Download every " + k.label,
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
				}, exportFlags()...),
				Action: k.downloadAllAction,
			},
		},
	}
}

func (k notebookKind) listAction(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	client, err := app.Client(cmd.String("token"))
	if err != nil {
		return fail(err)
	}
	nbs, err := k.list(ctx, client)
	if err != nil {
		return fail(err)
	}
	w := out(cmd)
	if len(nbs) == 0 {
		fmt.Fprintf(w, "No %ss.\n", k.label)
		return nil
	}
	printNotebooks(w, nbs, k.subscribed)
	return nil
}

func printNotebooks(w io.Writer, nbs []models.Notebook, subscribed bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if subscribed {
		fmt.Fprintln(tw, "NAME\tCREATOR\tITEMS\tSUBSCRIBERS\tUPDATED\tID")
	} else {
		fmt.Fprintln(tw, "NAME\tITEMS\tUPDATED\tID")
	}
	for _, nb := range nbs {
		if subscribed {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", nb.Name, nb.Creator, nb.ResourceCount, nb.SubscribeCount, nb.UpdatedDesc, nb.Alias)
		} else {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", nb.Name, nb.ResourceCount, nb.UpdatedDesc, nb.Alias)
		}
	}
	tw.Flush()
	fmt.Fprintf(w, "%d in total\n", len(nbs))
}

// pickNotebook selects by exact ID, or by a unique case-insensitive name
// substring.
func pickNotebook(nbs []models.Notebook, id, name string) (models.Notebook, error) {
	if id != "" {
		for _, nb := range nbs {
			if nb.Alias == id {
				return nb, nil
			}
		}
		return models.Notebook{}, fmt.Errorf("no notebook with ID %q", id)
	}
	if name == "" {
		return models.Notebook{}, fmt.Errorf("pass --name or --id")
	}
	needle := strings.ToLower(name)
	var matches []models.Notebook
	for _, nb := range nbs {
		if strings.Contains(strings.ToLower(nb.Name), needle) {
			matches = append(matches, nb)
		}
	}
	switch len(matches) {
	case 0:
		names := make([]string, len(nbs))
		for i, nb := range nbs {
			names[i] = "  " + nb.Name
		}
		return models.Notebook{}, fmt.Errorf("no notebook matches %q; available:\n%s", name, strings.Join(names, "\n"))
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, nb := range matches {
		names[i] = fmt.Sprintf("  %s (ID: %s)", nb.Name, nb.Alias)
	}
	return models.Notebook{}, fmt.Errorf("%d notebooks match %q, use --id:\n%s", len(matches), name, strings.Join(names, "\n"))
}

func (k notebookKind) downloadAction(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	client, err := app.Client(cmd.String("token"))
	if err != nil {
		return fail(err)
	}
	nbs, err := k.list(ctx, client)
	if err != nil {
		return fail(err)
	}
	nb, err := pickNotebook(nbs, cmd.String("id"), cmd.String("name"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	rs := app.Resolve(overrides(cmd))
	store, _, err := app.Export(rs.Output)
	if err != nil {
		return fail(err)
	}
	opts, closeIndex, err := syncOptions(app, cmd, rs)
	if err != nil {
		return fail(err)
	}
	defer closeIndex()

	stats, err := syncer.NewNotebookSync(client, store, app.Fetcher(), app.Logger(), opts).DownloadNotebook(ctx, nb)
	w := out(cmd)
	printNotebookStats(w, stats)
	fmt.Fprintf(w, "Saved to %s\n", filepath.Join(store.Root(), syncer.NotebookDir(nb)))
	if syncer.IsInterrupted(err) {
		fmt.Fprintln(w, "Interrupted; run the command again to resume.")
		return nil
	}
	return fail(err)
}

func (k notebookKind) downloadAllAction(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	client, err := app.Client(cmd.String("token"))
	if err != nil {
		return fail(err)
	}
	nbs, err := k.list(ctx, client)
	if err != nil {
		return fail(err)
	}
	w := out(cmd)
	if len(nbs) == 0 {
		fmt.Fprintf(w, "No %ss.\n", k.label)
		return nil
	}
	printNotebooks(w, nbs, k.subscribed)
	if !cmd.Bool("yes") && !confirm(os.Stdin, w, fmt.Sprintf("Download all %d %ss?", len(nbs), k.label)) {
		fmt.Fprintln(w, "Cancelled.")
		return nil
	}

	rs := app.Resolve(overrides(cmd))
	store, _, err := app.Export(rs.Output)
	if err != nil {
		return fail(err)
	}
	opts, closeIndex, err := syncOptions(app, cmd, rs)
	if err != nil {
		return fail(err)
	}
	defer closeIndex()

	stats, err := syncer.NewNotebookSync(client, store, app.Fetcher(), app.Logger(), opts).DownloadAll(ctx, nbs)
	printNotebookStats(w, stats)
	fmt.Fprintf(w, "Saved to %s\n", filepath.Join(store.Root(), "notebooks"))
	if syncer.IsInterrupted(err) {
		fmt.Fprintln(w, "Interrupted; run the command again to resume.")
		return nil
	}
	return fail(err)
}

func printNotebookStats(w io.Writer, st syncer.NotebookStats) {
	fmt.Fprintf(w, "Notes: %d, files: %d, skipped: %d", st.Notes, st.Files, st.Skipped)
	if st.Failed > 0 {
		fmt.Fprintf(w, ", failed: %d", st.Failed)
	}
	fmt.Fprintln(w)
}
