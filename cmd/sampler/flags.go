package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sampler/internal/inference"
)

var (
	modelName  string
	modelsPath string
	backend    string
	configFile string
	logLevel   string
	logFormat  string
	debug      bool

	prompt      string
	seed        int64
	nsamples    int64
	batchSize   int64
	length      int64
	temperature float64
	topK        int64
	topP        float64
)

func rootFlags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, commonModelFlags()...)
	flags = append(flags, samplingFlags()...)
	flags = append(flags, loggingFlags()...)
	return flags
}

func commonModelFlags() []cli.Flag {
	d := inference.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model_name",
			Aliases:     []string{"model-name", "m"},
			Usage:       "model directory name under --models-path",
			Value:       d.ModelName,
			Destination: &modelName,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"models_path", "path"},
			Usage:       "directory containing model directories (default: $SAMPLER_MODELS_DIR or ./models)",
			Destination: &modelsPath,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "execution backend (cpu, onnx)",
			Value:       inference.BackendCPU,
			Destination: &backend,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: $XDG_CONFIG_HOME/sampler/config.yaml)",
			Destination: &configFile,
		},
	}
}

func samplingFlags() []cli.Flag {
	d := inference.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i", "prompt"},
			Usage:       "prompt to condition on",
			Destination: &prompt,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed (default: derived from the clock)",
			Destination: &seed,
		},
		&cli.Int64Flag{
			Name:        "nsamples",
			Aliases:     []string{"n"},
			Usage:       "number of samples to return",
			Value:       int64(d.NSamples),
			Destination: &nsamples,
		},
		&cli.Int64Flag{
			Name:        "batch_size",
			Aliases:     []string{"batch-size"},
			Usage:       "samples per batch; must divide nsamples (0 = 1)",
			Value:       int64(d.BatchSize),
			Destination: &batchSize,
		},
		&cli.Int64Flag{
			Name:        "length",
			Aliases:     []string{"l"},
			Usage:       "tokens per sample (0 = half the context window)",
			Destination: &length,
		},
		&cli.Float64Flag{
			Name:        "temperature",
			Aliases:     []string{"temp", "t"},
			Usage:       "sampling temperature",
			Value:       d.Temperature,
			Destination: &temperature,
		},
		&cli.Int64Flag{
			Name:        "top_k",
			Aliases:     []string{"top-k", "topk"},
			Usage:       "keep the k most likely tokens (0 = no restriction)",
			Value:       int64(d.TopK),
			Destination: &topK,
		},
		&cli.Float64Flag{
			Name:        "top_p",
			Aliases:     []string{"top-p", "topp"},
			Usage:       "nucleus sampling threshold; overrides top_k when > 0",
			Value:       d.TopP,
			Destination: &topP,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// samplingConfig collects the flag values into a driver configuration.
func samplingConfig(c *cli.Command) inference.Config {
	cfg := inference.Config{
		ModelName:   modelName,
		ModelsDir:   resolveModelsDir(modelsPath),
		Prompt:      prompt,
		NSamples:    int(nsamples),
		BatchSize:   int(batchSize),
		Length:      int(length),
		Temperature: temperature,
		TopK:        int(topK),
		TopP:        topP,
	}
	if c.IsSet("seed") || seedFromConfig {
		s := seed
		cfg.Seed = &s
	}
	return cfg
}
