package main

import (
	"github.com/urfave/cli/v2"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

var approveAllCommand = &cli.Command{
	Name:  "approve-all",
	Usage: "Approve every pending submission matching the scope",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "actor", Usage: "reviewer recorded on each transition", Required: true},
		&cli.StringFlag{Name: "faculty", Usage: "faculty id"},
		&cli.StringFlag{Name: "course", Usage: "course id"},
		&cli.StringFlag{Name: "document-type", Usage: "document type id"},
		&cli.StringFlag{Name: "semester"},
		&cli.StringFlag{Name: "academic-year"},
	},
	Action: func(c *cli.Context) error {
		app, err := openApp(c.Context, true)
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.Pipeline.ApproveAll(c.Context, domain.ScopeFilter{
			FacultyID:      c.String("faculty"),
			CourseID:       c.String("course"),
			DocumentTypeID: c.String("document-type"),
			Semester:       c.String("semester"),
			AcademicYear:   c.String("academic-year"),
		}, c.String("actor"))
		if err != nil {
			return err
		}
		if err := printJSON(c, result); err != nil {
			return err
		}
		if result.Failed > 0 {
			return cli.Exit("some submissions were not approved", 1)
		}
		return nil
	},
}

var transitionsCommand = &cli.Command{
	Name:  "transitions",
	Usage: "Show the most recent transitions into a status",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "to", Value: string(domain.StatusApproved)},
		&cli.IntFlag{Name: "limit", Value: 20},
	},
	Action: func(c *cli.Context) error {
		to, err := domain.ParseStatus(c.String("to"))
		if err != nil {
			return err
		}
		app, err := openApp(c.Context, false)
		if err != nil {
			return err
		}
		defer app.Close()

		transitions, err := app.Pipeline.RecentTransitions(c.Context, to, c.Int("limit"))
		if err != nil {
			return err
		}
		return printJSON(c, transitions)
	},
}
