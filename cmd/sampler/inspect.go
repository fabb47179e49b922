package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sampler/internal/checkpoint"
	"github.com/samcharles93/sampler/internal/hparams"
	"github.com/samcharles93/sampler/internal/safetensors"
)

func inspectCmd() *cli.Command {
	var showTensors bool

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show hyperparameters and checkpoint contents of a model",
		UsageText: "sampler inspect [--tensors] [model name | checkpoint.safetensors]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "tensors",
				Usage:       "list every tensor in the checkpoint",
				Destination: &showTensors,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if _, err := prepare(ctx, c); err != nil {
				return err
			}
			target := c.Args().First()
			if target == "" {
				target = modelName
			}
			w := stdout(c)

			if strings.HasSuffix(target, ".safetensors") {
				return inspectCheckpoint(w, target, true)
			}

			dir := filepath.Join(resolveModelsDir(modelsPath), target)
			hp, err := hparams.Load(filepath.Join(dir, hparams.FileName))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Fprintf(w, "model:    %s\n", target)
			fmt.Fprintf(w, "dir:      %s\n", dir)
			fmt.Fprintf(w, "n_vocab:  %d\n", hp.NVocab)
			fmt.Fprintf(w, "n_ctx:    %d\n", hp.NCtx)
			fmt.Fprintf(w, "n_embd:   %d\n", hp.NEmbd)
			fmt.Fprintf(w, "n_head:   %d\n", hp.NHead)
			fmt.Fprintf(w, "n_layer:  %d\n", hp.NLayer)

			path, err := checkpoint.Latest(dir)
			if err != nil {
				fmt.Fprintf(w, "checkpoint: none (%v)\n", err)
				return nil
			}
			return inspectCheckpoint(w, path, showTensors)
		},
	}
}

func inspectCheckpoint(w io.Writer, path string, listTensors bool) error {
	f, err := safetensors.Open(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = f.Close() }()

	size := int64(0)
	if st, err := os.Stat(path); err == nil {
		size = st.Size()
	}
	params := 0
	for _, info := range f.Tensors {
		n := 1
		for _, d := range info.Shape {
			n *= d
		}
		params += n
	}
	fmt.Fprintf(w, "checkpoint: %s (%s)\n", path, formatModelSize(size))
	fmt.Fprintf(w, "tensors:    %d\n", len(f.Tensors))
	fmt.Fprintf(w, "parameters: %d\n", params)
	for _, k := range sortedKeys(f.Metadata) {
		fmt.Fprintf(w, "meta %s: %s\n", k, f.Metadata[k])
	}
	if !listTensors {
		return nil
	}
	fmt.Fprintln(w)
	for _, name := range f.Names() {
		info, _ := f.Tensor(name)
		fmt.Fprintf(w, "  %-40s %-5s %v\n", name, info.DType, info.Shape)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
