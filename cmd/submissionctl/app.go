package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kirillkom/submission-vault/internal/bootstrap"
	"github.com/kirillkom/submission-vault/internal/config"
	"github.com/kirillkom/submission-vault/internal/observability/logging"
)

const serviceName = "submissionctl"

func openApp(ctx context.Context, withQueue bool) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewJSONLogger(logging.Options{
		Service:  serviceName,
		Level:    cfg.LogLevel,
		FilePath: cfg.LogFile,
	})
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:   serviceName,
		Logger:    logger,
		SkipQueue: !withQueue,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
