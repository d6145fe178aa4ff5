package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/app"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/config"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/logging"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "threadctl",
		Usage: "Maintenance tasks for the discussion backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create or update the database schema",
				Action: migrate,
			},
			{
				Name:  "sweep",
				Usage: "Delete refresh sessions that expired before now minus --older-than",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "older-than",
						Aliases: []string{"o"},
						Usage:   "Retention past expiry (e.g. 24h, 0s)",
						Value:   24 * time.Hour,
					},
				},
				Action: sweep,
			},
		},
	}
}

func open(c *cli.Context) (*app.App, error) {
	cfg := config.Load()
	return app.New(cfg, logging.New(c.String("log-level")))
}

func migrate(c *cli.Context) error {
	a, err := open(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Migrate(); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "schema up to date")
	return nil
}

func sweep(c *cli.Context) error {
	a, err := open(c)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Sweep(c.Context, c.Duration("older-than"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %d expired sessions\n", n)
	return nil
}
