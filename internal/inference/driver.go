package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samcharles93/sampler/internal/encoder"
	"github.com/samcharles93/sampler/internal/hparams"
	"github.com/samcharles93/sampler/internal/logger"
)

const (
	// InteractivePrompt is shown before each line read in interactive mode.
	InteractivePrompt = "Model prompt >>> "
	emptyPromptNotice = "Prompt should not be empty!"
)

// Banner is the separator printed before sample n.
func Banner(n int) string {
	return strings.Repeat("=", 40) + " SAMPLE " + strconv.Itoa(n) + " " + strings.Repeat("=", 40)
}

// Footer closes a run.
var Footer = strings.Repeat("=", 80)

// RunStats summarises one prompt's worth of sampling.
type RunStats struct {
	Batches         int
	Samples         int
	TokensGenerated int
	Duration        time.Duration
}

// Driver holds a restored model and its sampler for one configuration.
type Driver struct {
	cfg    Config
	hp     hparams.HParams
	enc    encoder.Encoder
	engine Engine
	length int
	seed   int64
	log    logger.Logger
}

// Open validates cfg and prepares the encoder, hyperparameters and engine.
// Nothing is read from disk when cfg is invalid, and the length is checked
// against the window before the checkpoint is restored.
func Open(ctx context.Context, cfg Config, src ModelSource) (*Driver, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("model", cfg.ModelName)

	enc, err := src.Encoder(cfg.ModelName)
	if err != nil {
		return nil, err
	}
	hp, err := src.HParams(cfg.ModelName)
	if err != nil {
		return nil, err
	}
	length, err := ResolveLength(cfg.Length, hp.NCtx)
	if err != nil {
		return nil, err
	}

	var seed int64
	if cfg.Seed != nil {
		seed = *cfg.Seed
	} else {
		seed = time.Now().UnixNano()
		log.Debug("no seed given, using clock", "seed", seed)
	}

	engine, err := src.Engine(ctx, cfg.ModelName, hp, SamplingOptions{
		Length:      length,
		BatchSize:   cfg.BatchSize,
		Temperature: cfg.Temperature,
		TopK:        cfg.TopK,
		TopP:        cfg.TopP,
		Seed:        seed,
		StartToken:  hp.EndOfText(),
	})
	if err != nil {
		return nil, err
	}
	log.Debug("driver ready", "length", length, "batch_size", cfg.BatchSize, "nsamples", cfg.NSamples)
	return &Driver{
		cfg:    cfg,
		hp:     hp,
		enc:    enc,
		engine: engine,
		length: length,
		seed:   seed,
		log:    log,
	}, nil
}

func (d *Driver) Config() Config { return d.cfg }
func (d *Driver) HParams() hparams.HParams { return d.hp }
func (d *Driver) Length() int { return d.length }
func (d *Driver) Seed() int64 { return d.seed }
func (d *Driver) Encoder() encoder.Encoder { return d.enc }
func (d *Driver) Close() error { return d.engine.Close() }

// Generate samples NSamples continuations of prompt in NSamples/BatchSize
// engine calls and hands each decoded text to fn, numbered from 1.
func (d *Driver) Generate(ctx context.Context, prompt string, fn func(n int, text string) error) (RunStats, error) {
	var stats RunStats
	tokens, err := d.enc.Encode(prompt)
	if err != nil {
		return stats, fmt.Errorf("encode prompt: %w", err)
	}
	if len(tokens) > 0 && !fitsWindow(len(tokens), d.length, d.hp.NCtx) {
		return stats, fmt.Errorf("%w: %d prompt tokens, length %d, window %d", ErrPromptTooLong, len(tokens), d.length, d.hp.NCtx)
	}

	batch := make([][]int, d.cfg.BatchSize)
	for i := range batch {
		batch[i] = tokens
	}

	start := time.Now()
	generated := 0
	for b := 0; b < d.cfg.Batches(); b++ {
		out, err := d.engine.SampleSequence(ctx, batch, d.length)
		if err != nil {
			return stats, fmt.Errorf("sample batch %d: %w", b+1, err)
		}
		if len(out) != d.cfg.BatchSize {
			return stats, fmt.Errorf("sample batch %d: expected %d rows, got %d", b+1, d.cfg.BatchSize, len(out))
		}
		stats.Batches++
		for _, row := range out {
			if len(row) < len(tokens) {
				return stats, fmt.Errorf("sample batch %d: row shorter than context", b+1)
			}
			suffix := row[len(tokens):]
			text, err := d.enc.Decode(suffix)
			if err != nil {
				return stats, fmt.Errorf("decode sample %d: %w", generated+1, err)
			}
			generated++
			stats.Samples++
			stats.TokensGenerated += len(suffix)
			if err := fn(generated, text); err != nil {
				return stats, err
			}
		}
	}
	stats.Duration = time.Since(start)
	d.log.Debug("sampling finished", "samples", stats.Samples, "tokens", stats.TokensGenerated, "duration", stats.Duration)
	return stats, nil
}

// Sample writes every sample of prompt under its banner, then the footer.
func (d *Driver) Sample(ctx context.Context, prompt string, w io.Writer) (RunStats, error) {
	stats, err := d.Generate(ctx, prompt, func(n int, text string) error {
		_, err := fmt.Fprintf(w, "%s\n%s\n", Banner(n), text)
		return err
	})
	if err != nil {
		return stats, err
	}
	_, err = fmt.Fprintln(w, Footer)
	return stats, err
}

// Interactive reads prompts until readLine returns io.EOF, sampling each one
// with the already restored model. Empty prompts are rejected and re-asked.
func (d *Driver) Interactive(ctx context.Context, readLine func(prompt string) (string, error), w io.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := readLine(InteractivePrompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			if _, err := fmt.Fprintln(w, emptyPromptNotice); err != nil {
				return err
			}
			continue
		}
		if _, err := d.Sample(ctx, line, w); err != nil {
			if errors.Is(err, ErrPromptTooLong) {
				d.log.Warn("prompt rejected", "error", err)
				continue
			}
			return err
		}
	}
}

// Run opens a driver for cfg, samples cfg.Prompt once and releases it.
func Run(ctx context.Context, cfg Config, src ModelSource, w io.Writer) (RunStats, error) {
	d, err := Open(ctx, cfg, src)
	if err != nil {
		return RunStats{}, err
	}
	defer d.Close()
	return d.Sample(ctx, cfg.Prompt, w)
}
