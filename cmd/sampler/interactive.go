package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sampler/internal/inference"
	"github.com/samcharles93/sampler/internal/logger"
)

// lineReader reads one prompt line; io.EOF ends the session.
var lineReader = readInteractiveLine

func interactiveCmd() *cli.Command {
	return &cli.Command{
		Name:    "interactive",
		Aliases: []string{"chat"},
		Usage:   "Read prompts from the terminal and print samples for each",
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := prepare(ctx, c)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)

			cfg := samplingConfig(c)
			loader := inference.NewLoader(cfg.ModelsDir, backend, log)
			d, err := inference.Open(ctx, cfg, loader)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer func() { _ = d.Close() }()

			log.Info("model ready",
				"model", cfg.ModelName,
				"n_ctx", d.HParams().NCtx,
				"length", d.Length(),
				"seed", d.Seed(),
			)
			if err := d.Interactive(ctx, lineReader, stdout(c)); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}
