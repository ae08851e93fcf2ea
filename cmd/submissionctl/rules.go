package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kirillkom/submission-vault/internal/infrastructure/ruleconfig"
)

var rulesCommand = &cli.Command{
	Name:  "rules",
	Usage: "Manage document types and their rule sets",
	Subcommands: []*cli.Command{
		{
			Name:      "import",
			Usage:     "Upsert document types and rule sets from a YAML file",
			ArgsUsage: "<file>",
			Action: func(c *cli.Context) error {
				path := c.Args().First()
				if path == "" {
					return cli.Exit("rules file is required", 2)
				}
				file, err := ruleconfig.LoadFile(path)
				if err != nil {
					return err
				}

				app, err := openApp(c.Context, false)
				if err != nil {
					return err
				}
				defer app.Close()

				applied, err := ruleconfig.Apply(c.Context, app.RuleAdmin, file)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.App.Writer, "imported %d document types from %s\n", applied, path)
				return err
			},
		},
		{
			Name:      "show",
			Usage:     "Print the rule set of a document type",
			ArgsUsage: "<document-type-id>",
			Action: func(c *cli.Context) error {
				id := c.Args().First()
				if id == "" {
					return cli.Exit("document type id is required", 2)
				}
				app, err := openApp(c.Context, false)
				if err != nil {
					return err
				}
				defer app.Close()

				rules, err := app.RuleAdmin.GetRuleSet(c.Context, id)
				if err != nil {
					return err
				}
				return printJSON(c, rules)
			},
		},
		{
			Name:  "list",
			Usage: "List document types",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "active", Usage: "only active document types"},
			},
			Action: func(c *cli.Context) error {
				app, err := openApp(c.Context, false)
				if err != nil {
					return err
				}
				defer app.Close()

				types, err := app.RuleAdmin.ListDocumentTypes(c.Context, c.Bool("active"))
				if err != nil {
					return err
				}
				return printJSON(c, types)
			},
		},
	},
}
