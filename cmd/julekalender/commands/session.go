package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/julekalender/internal/app"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "exchange username and password for a session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "account username or email",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "account password (prompted for when omitted)",
				Sources: cli.EnvVars("JULEKALENDER_PASSWORD"),
			},
		},
		Action: action(loginAction),
	}
}

func loginAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	password := cmd.String("password")
	if password == "" {
		var err error
		password, err = readPassword(cmd.Root().Reader, cmd.Root().ErrWriter)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
	}

	tok, err := application.Session().Login(ctx, cmd.String("username"), password)
	if tok == nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err != nil {
		// Logged in, but the session will not outlive this process
		fmt.Fprintf(cmd.Root().ErrWriter, "warning: %v\n", err)
	}

	out := cmd.Root().Writer
	fmt.Fprintf(out, "logged in as %s", cmd.String("username"))
	if !tok.Expiry.IsZero() {
		fmt.Fprintf(out, " (session expires %s)", tok.Expiry.Local().Format(time.RFC1123))
	}
	fmt.Fprintln(out)
	return nil
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(secret), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "end the session and forget the stored token",
		Action: action(logoutAction),
	}
}

func logoutAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	if err := application.Session().Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, "logged out")
	return nil
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "show the stored session",
		Action: action(whoamiAction),
	}
}

func whoamiAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	c, err := application.Connect(ctx)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	tok, ok := c.Get()
	if !ok {
		fmt.Fprintln(out, "anonymous")
		return nil
	}

	subject, ok := c.Store().Subject()
	if !ok {
		subject = "unknown user"
	}
	fmt.Fprintf(out, "%s (%s token", subject, tok.Type())
	if !tok.Expiry.IsZero() {
		fmt.Fprintf(out, ", expires %s", tok.Expiry.Local().Format(time.RFC1123))
	}
	fmt.Fprintln(out, ")")
	return nil
}
