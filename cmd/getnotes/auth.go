package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/starford/getnotes/internal/credential"
)

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "token",
		Usage:   "Bearer token to log in with before running the command",
		Sources: cli.EnvVars("GETNOTES_TOKEN"),
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Save the bearer token captured from the web client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "Bearer token (prompted for when omitted)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			token := cmd.String("token")
			if token == "" {
				if token, err = promptToken(); err != nil {
					return fail(err)
				}
			}
			cred, err := app.Credentials().Login(token)
			if err != nil {
				return fail(err)
			}
			w := out(cmd)
			fmt.Fprintf(w, "Logged in. Token: %s\n", credential.Masked(cred.Authorization, 20))
			fmt.Fprintf(w, "Saved to %s\n", app.Credentials().Path())
			if exp, ok := cred.TokenExpiry(); ok {
				fmt.Fprintf(w, "Token expires at %s\n", exp.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}

// promptToken reads the token without echo from a terminal, or as one line
// from piped input.
func promptToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Paste the Authorization header value: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Remove the saved token",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Credentials().Clear(); err != nil {
				return fail(err)
			}
			fmt.Fprintln(out(cmd), "Logged out.")
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether a usable token is saved",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			w := out(cmd)
			cred, err := app.Credentials().Load()
			if err != nil {
				fmt.Fprintln(w, "Not logged in. Run 'getnotes login'.")
				return nil
			}
			age := cred.Age(time.Now()).Round(time.Second)
			fmt.Fprintf(w, "Token: %s\n", credential.Masked(cred.Authorization, 20))
			fmt.Fprintf(w, "Saved %s ago\n", age)
			if _, err := app.Credentials().Current(); err != nil {
				fmt.Fprintln(w, "Status: expired, run 'getnotes login' again")
				return nil
			}
			fmt.Fprintln(w, "Status: valid")
			return nil
		},
	}
}
