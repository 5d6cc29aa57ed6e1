package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/julekalender/internal/apiclient"
	"github.com/florianilch/julekalender/internal/app"
)

func requestCommand() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Usage:     "send a request to an endpoint and print the JSON result",
		ArgsUsage: "METHOD ENDPOINT [key=value | key:=json ...]",
		Description: "GET arguments are sent as query parameters, all other methods send them as a JSON body.\n" +
			"key=value passes a string, key:=json passes a raw JSON value (number, boolean, null, ...).",
		Action: action(requestAction),
	}
}

func requestAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	argv := cmd.Args().Slice()
	if len(argv) < 2 {
		return fmt.Errorf("usage: %s %s", cmd.FullName(), cmd.ArgsUsage)
	}

	args, err := parseArgs(argv[2:])
	if err != nil {
		return err
	}

	c, err := application.Connect(ctx)
	if err != nil {
		return err
	}

	result, err := c.Send(ctx, argv[1], argv[0], args)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, result)
}

func timeCommand() *cli.Command {
	return &cli.Command{
		Name:   "time",
		Usage:  "print the server time",
		Action: action(timeAction),
	}
}

func timeAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	c, err := application.Connect(ctx)
	if err != nil {
		return err
	}

	result, err := c.Send(ctx, "time", "GET", nil)
	if err != nil {
		return err
	}

	var payload struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return &apiclient.TransportError{Op: "decoding time response", Err: err}
	}
	fmt.Fprintln(cmd.Root().Writer, payload.Time)
	return nil
}

// parseArgs turns key=value and key:=json pairs into request arguments.
func parseArgs(pairs []string) (apiclient.Args, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	args := make(apiclient.Args, len(pairs))
	for _, pair := range pairs {
		if key, raw, ok := strings.Cut(pair, ":="); ok && key != "" && !strings.Contains(key, "=") {
			var value any
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				return nil, fmt.Errorf("argument %q: invalid JSON value: %w", key, err)
			}
			args[key] = value
			continue
		}

		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q: expected key=value or key:=json", pair)
		}
		args[key] = value
	}
	return args, nil
}

// printJSON indents result for terminals. A nil result prints nothing.
func printJSON(w io.Writer, result json.RawMessage) error {
	if result == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
