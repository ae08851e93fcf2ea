package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "submissionctl",
		Usage: "Operate the submission vault: schema, rule sets and bulk review",
		Commands: []*cli.Command{
			migrateCommand,
			rulesCommand,
			approveAllCommand,
			transitionsCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("submissionctl: %v", err)
	}
}
