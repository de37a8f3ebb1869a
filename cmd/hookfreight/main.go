package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/hookfreight/hookfreight/internal/app"
	"github.com/hookfreight/hookfreight/internal/config"
	"github.com/hookfreight/hookfreight/internal/migrator"
	"github.com/hookfreight/hookfreight/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "hookfreight",
		Usage:   "Self-hosted webhook relay",
		Version: version.Version(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Sources: cli.EnvVars("CONFIG"),
			},
			&cli.StringFlag{
				Name:  "service",
				Usage: "Service to run: api, delivery, or empty for both",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HookFreight server",
				Action: serveAction,
			},
			{
				Name:  "migrate",
				Usage: "Manage database schema migrations",
				Commands: []*cli.Command{
					{
						Name:      "up",
						Usage:     "Apply pending migrations (all by default)",
						ArgsUsage: "[n]",
						Action: func(ctx context.Context, c *cli.Command) error {
							return migrateUp(ctx, c)
						},
					},
					{
						Name:      "down",
						Usage:     "Roll back n migrations (1 by default)",
						ArgsUsage: "[n]",
						Action: func(ctx context.Context, c *cli.Command) error {
							return migrateDown(ctx, c)
						},
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Println(version.Version())
					return nil
				},
			},
		},
		// A bare "hookfreight" runs the server.
		Action: serveAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveAction(ctx context.Context, c *cli.Command) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}
	return app.New(cfg).Run(ctx)
}

func migrateUp(ctx context.Context, c *cli.Command) error {
	// Negative means all pending migrations.
	steps := -1
	if c.Args().Len() > 0 {
		n, err := parseSteps(c.Args().First())
		if err != nil {
			return err
		}
		steps = n
	}

	return withMigrator(c, func(m *migrator.Migrator) error {
		version, applied, err := m.Up(ctx, steps)
		if err != nil {
			return err
		}
		fmt.Printf("migrated up to version %d (%d applied)\n", version, applied)
		return nil
	})
}

func migrateDown(ctx context.Context, c *cli.Command) error {
	steps := 1
	if c.Args().Len() > 0 {
		n, err := parseSteps(c.Args().First())
		if err != nil {
			return err
		}
		steps = n
	}

	return withMigrator(c, func(m *migrator.Migrator) error {
		version, rolledBack, err := m.Down(ctx, steps)
		if err != nil {
			return err
		}
		fmt.Printf("migrated down to version %d (%d rolled back)\n", version, rolledBack)
		return nil
	})
}

func withMigrator(c *cli.Command, fn func(*migrator.Migrator) error) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}

	m, err := migrator.New(migrator.MigrationOpts{
		PG: migrator.MigrationOptsPG{URL: cfg.PostgresURL},
	})
	if err != nil {
		return err
	}
	defer m.Close(context.Background())

	return fn(m)
}

func parseConfig(c *cli.Command) (*config.Config, error) {
	return config.Parse(config.Flags{
		Config:  c.String("config"),
		Service: c.String("service"),
	})
}

func parseSteps(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid migration step count %q", arg)
	}
	return n, nil
}
