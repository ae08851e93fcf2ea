package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kirillkom/submission-vault/internal/config"
	"github.com/kirillkom/submission-vault/internal/infrastructure/repository/postgres"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Create the database schema if it does not exist",
	Action: func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		if err := postgres.EnsureSchema(c.Context, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		_, err = fmt.Fprintln(c.App.Writer, "schema is up to date")
		return err
	},
}
