package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/getnotes/internal/getnotes"
	"github.com/starford/getnotes/internal/parser"
)

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Publish a note from a Markdown or text file",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Markdown or text file to publish; YAML frontmatter may set title and tags"},
			&cli.StringSliceFlag{Name: "image", Aliases: []string{"i"}, Usage: "Image to upload and append (repeatable)"},
			&cli.StringFlag{Name: "title", Usage: "Note title"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Tag to attach (repeatable)"},
			tokenFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			draft, err := draftFrom(cmd)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.Client(cmd.String("token"))
			if err != nil {
				return fail(err)
			}

			w := out(cmd)
			if len(draft.Images) > 0 {
				fmt.Fprintf(w, "Uploading %d images...\n", len(draft.Images))
			}
			created, err := client.CreateNote(ctx, draft)
			if err != nil {
				return fail(fmt.Errorf("create note: %w", err))
			}
			fmt.Fprintln(w, "Created note.")
			fmt.Fprintf(w, "  ID: %s\n", created.ID)
			fmt.Fprintf(w, "  Created at: %s\n", created.Raw.String("created_at"))
			return nil
		},
	}
}

// draftFrom assembles the note from --file or the text argument. Flags win
// over frontmatter.
func draftFrom(cmd *cli.Command) (getnotes.Draft, error) {
	var d getnotes.Draft
	text := strings.Join(cmd.Args().Slice(), " ")

	if name := cmd.String("file"); name != "" {
		data, err := os.ReadFile(name)
		if err != nil {
			return d, fmt.Errorf("read %s: %w", name, err)
		}
		text = string(data)
		if res, err := parser.Parse(data); err == nil && len(res.Frontmatter) > 0 {
			text = strings.TrimLeft(res.Body, "\n")
			d.Title = res.Title
			d.Tags = res.Tags
		}
	}
	if strings.TrimSpace(text) == "" && len(cmd.StringSlice("image")) == 0 {
		return d, fmt.Errorf("nothing to publish: pass --file, text or --image")
	}

	if cmd.IsSet("title") {
		d.Title = cmd.String("title")
	}
	if tags := cmd.StringSlice("tag"); len(tags) > 0 {
		d.Tags = tags
	}
	for _, img := range cmd.StringSlice("image") {
		abs, err := filepath.Abs(img)
		if err != nil {
			return d, err
		}
		if _, err := os.Stat(abs); err != nil {
			return d, fmt.Errorf("image %s: %w", img, err)
		}
		d.Images = append(d.Images, abs)
	}
	d.Text = getnotes.EditorText(strings.TrimRight(text, "\n"))
	return d, nil
}
