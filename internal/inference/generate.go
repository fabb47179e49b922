package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/samcharles93/sampler/internal/logits"
	"github.com/samcharles93/sampler/internal/model"
)

type Stats struct {
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// Generate prefills prompt and then samples steps tokens, returning only the
// sampled ids. The model is not fed the final token.
func Generate(ctx context.Context, m model.Model, sampler *logits.Sampler, prompt []int, steps int) ([]int, Stats, error) {
	var stats Stats
	if len(prompt) == 0 {
		return nil, stats, fmt.Errorf("empty context")
	}

	var logitsVec []float32
	var err error
	for _, id := range prompt {
		logitsVec, err = safeForward(m, id)
		if err != nil {
			return nil, stats, fmt.Errorf("forward error during prefill: %w", err)
		}
	}

	out := make([]int, 0, steps)
	start := time.Now()
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		next, err := safeSample(sampler, logitsVec)
		if err != nil {
			return nil, stats, err
		}
		out = append(out, next)
		stats.TokensGenerated++

		if i == steps-1 {
			break
		}
		logitsVec, err = safeForward(m, next)
		if err != nil {
			return nil, stats, fmt.Errorf("forward error during generation step %d: %w", i, err)
		}
	}

	stats.Duration = time.Since(start)
	if stats.Duration.Seconds() > 0 {
		stats.TPS = float64(stats.TokensGenerated) / stats.Duration.Seconds()
	}
	return out, stats, nil
}

func safeForward(m model.Model, id int) (out []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in ForwardToken: %v", rec)
		}
	}()
	return m.ForwardToken(id)
}

func safeSample(s *logits.Sampler, l []float32) (id int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Sample: %v", rec)
		}
	}()
	return s.Sample(l), nil
}
