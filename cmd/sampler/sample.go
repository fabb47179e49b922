package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sampler/internal/inference"
	"github.com/samcharles93/sampler/internal/logger"
)

func sampleCmd() *cli.Command {
	return &cli.Command{
		Name:      "sample",
		Usage:     "Generate nsamples continuations of --input and print them",
		UsageText: "sampler sample --input \"prompt\" [--nsamples N --batch_size B --length L --seed S]",
		Action:    sampleAction,
	}
}

func sampleAction(ctx context.Context, c *cli.Command) error {
	ctx, err := prepare(ctx, c)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)

	cfg := samplingConfig(c)
	loader := inference.NewLoader(cfg.ModelsDir, backend, log)
	stats, err := inference.Run(ctx, cfg, loader, stdout(c))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	log.Debug("sampling finished",
		"batches", stats.Batches,
		"samples", stats.Samples,
		"tokens", stats.TokensGenerated,
		"duration", stats.Duration,
	)
	return nil
}
