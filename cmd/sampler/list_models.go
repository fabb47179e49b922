package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sampler/internal/inference"
	"github.com/samcharles93/sampler/internal/logger"
)

func listModelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls", "models"},
		Usage:   "List models in the models directory",
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := prepare(ctx, c)
			if err != nil {
				return err
			}
			dir := resolveModelsDir(modelsPath)
			loader := inference.NewLoader(dir, backend, logger.FromContext(ctx))
			models, err := loader.Models()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			w := stdout(c)
			if len(models) == 0 {
				fmt.Fprintf(w, "No models found in %s\n", dir)
				return nil
			}
			fmt.Fprintf(w, "Models in %s:\n\n", dir)
			for _, m := range models {
				size := "-"
				if m.Checkpoint != "" {
					if st, err := os.Stat(m.Checkpoint); err == nil {
						size = formatModelSize(st.Size())
					}
				}
				ckpt := "no checkpoint"
				if m.Checkpoint != "" {
					ckpt = filepath.Base(m.Checkpoint)
				}
				fmt.Fprintf(w, "  %-20s %8s  n_ctx=%-5d n_layer=%-3d %s\n",
					m.Name, size, m.HParams.NCtx, m.HParams.NLayer, ckpt)
			}
			fmt.Fprintf(w, "\n%d model(s) found\n", len(models))
			return nil
		},
	}
}
