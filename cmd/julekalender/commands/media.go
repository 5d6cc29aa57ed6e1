package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/julekalender/internal/app"
)

func mediaCommand() *cli.Command {
	return &cli.Command{
		Name:  "media",
		Usage: "work with task media",
		Commands: []*cli.Command{
			{
				Name:      "download",
				Usage:     "download media files by name",
				ArgsUsage: "NAME [NAME ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "directory to write files to",
						Value:   ".",
					},
					&cli.IntFlag{
						Name:  "download--concurrency",
						Usage: "number of parallel downloads",
						Value: app.DefaultConfigDownloadConcurrency,
					},
				},
				Action: action(mediaDownloadAction),
			},
		},
	}
}

func mediaDownloadAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	names := cmd.Args().Slice()
	if len(names) == 0 {
		return errors.New("at least one media name is required")
	}

	paths, err := application.DownloadMedia(ctx, names, cmd.String("output-dir"))
	if err != nil {
		return err
	}

	for _, path := range paths {
		fmt.Fprintln(cmd.Root().Writer, path)
	}
	return nil
}
