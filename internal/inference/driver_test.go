package inference

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func int64p(v int64) *int64 { return &v }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ModelName = "tiny"
	cfg.Prompt = "the quick"
	cfg.Seed = int64p(7)
	cfg.Length = 3
	return cfg
}

func TestRunExampleOutput(t *testing.T) {
	t.Parallel()
	src := newFakeSource(16)
	cfg := testConfig()
	cfg.NSamples = 2
	cfg.BatchSize = 1

	var out bytes.Buffer
	stats, err := Run(context.Background(), cfg, src, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := Banner(1) + "\nfox fox fox\n" + Banner(2) + "\nfox fox fox\n" + Footer + "\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", out.String(), want)
	}
	if src.engine.calls != 2 {
		t.Fatalf("expected 2 sampling calls, got %d", src.engine.calls)
	}
	if stats.Samples != 2 || stats.Batches != 2 || stats.TokensGenerated != 6 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !src.engine.closed {
		t.Fatal("expected Run to close the engine")
	}
}

func TestBannerFormat(t *testing.T) {
	t.Parallel()
	want := strings.Repeat("=", 40) + " SAMPLE 12 " + strings.Repeat("=", 40)
	if got := Banner(12); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if len(Footer) != 80 || strings.Trim(Footer, "=") != "" {
		t.Fatalf("unexpected footer %q", Footer)
	}
}

func TestSamplingCallsAndNumbering(t *testing.T) {
	t.Parallel()
	tests := []struct {
		nsamples, batch int
	}{
		{1, 1},
		{4, 2},
		{6, 3},
		{5, 5},
	}
	for _, tc := range tests {
		src := newFakeSource(16)
		cfg := testConfig()
		cfg.NSamples, cfg.BatchSize = tc.nsamples, tc.batch

		var out bytes.Buffer
		if _, err := Run(context.Background(), cfg, src, &out); err != nil {
			t.Fatalf("nsamples=%d batch=%d: %v", tc.nsamples, tc.batch, err)
		}
		if want := tc.nsamples / tc.batch; src.engine.calls != want {
			t.Errorf("nsamples=%d batch=%d: expected %d calls, got %d", tc.nsamples, tc.batch, want, src.engine.calls)
		}
		for n := 1; n <= tc.nsamples; n++ {
			if strings.Count(out.String(), Banner(n)+"\n") != 1 {
				t.Errorf("nsamples=%d batch=%d: banner %d missing or repeated", tc.nsamples, tc.batch, n)
			}
		}
		if strings.Contains(out.String(), Banner(tc.nsamples+1)) {
			t.Errorf("nsamples=%d batch=%d: unexpected extra banner", tc.nsamples, tc.batch)
		}
		if strings.Count(out.String(), Footer) != 1 || !strings.HasSuffix(out.String(), Footer+"\n") {
			t.Errorf("nsamples=%d batch=%d: footer must appear once at the end", tc.nsamples, tc.batch)
		}
	}
}

func TestPromptReplicatedPerBatch(t *testing.T) {
	t.Parallel()
	src := newFakeSource(16)
	cfg := testConfig()
	cfg.NSamples, cfg.BatchSize = 4, 2

	if _, err := Run(context.Background(), cfg, src, io.Discard); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for call, contexts := range src.engine.contexts {
		if len(contexts) != 2 {
			t.Fatalf("call %d: expected 2 rows, got %d", call, len(contexts))
		}
		for _, row := range contexts {
			if len(row) != 2 || row[0] != 0 || row[1] != 1 {
				t.Fatalf("call %d: expected encoded prompt [0 1], got %v", call, row)
			}
		}
	}
}

func TestBatchMismatchAbortsBeforeLoading(t *testing.T) {
	t.Parallel()
	src := newFakeSource(16)
	cfg := testConfig()
	cfg.NSamples, cfg.BatchSize = 3, 2

	var out bytes.Buffer
	_, err := Run(context.Background(), cfg, src, &out)
	if !errors.Is(err, ErrBatchMismatch) {
		t.Fatalf("expected ErrBatchMismatch, got %v", err)
	}
	if src.loads != 0 || src.engineHits != 0 || src.engine.calls != 0 {
		t.Fatalf("expected no loading or sampling, got loads=%d engines=%d calls=%d", src.loads, src.engineHits, src.engine.calls)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestZeroBatchSizeMeansOne(t *testing.T) {
	t.Parallel()
	src := newFakeSource(16)
	cfg := testConfig()
	cfg.NSamples, cfg.BatchSize = 3, 0

	if _, err := Run(context.Background(), cfg, src, io.Discard); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.engine.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", src.engine.calls)
	}
}

func TestLengthDefaultsToHalfWindow(t *testing.T) {
	t.Parallel()
	src := newFakeSource(10)
	cfg := testConfig()
	cfg.Length = 0
	cfg.NSamples = 1

	if _, err := Run(context.Background(), cfg, src, io.Discard); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.opts.Length != 5 || src.engine.lengths[0] != 5 {
		t.Fatalf("expected length 5, got opts=%d call=%d", src.opts.Length, src.engine.lengths[0])
	}
}

func TestLengthOverWindowFailsBeforeEngine(t *testing.T) {
	t.Parallel()
	src := newFakeSource(8)
	cfg := testConfig()
	cfg.Length = 9

	_, err := Run(context.Background(), cfg, src, io.Discard)
	if !errors.Is(err, ErrLengthExceedsContext) {
		t.Fatalf("expected ErrLengthExceedsContext, got %v", err)
	}
	if !strings.Contains(err.Error(), "window size: 8") {
		t.Fatalf("expected window size in message, got %v", err)
	}
	if src.engineHits != 0 {
		t.Fatalf("expected no engine construction, got %d", src.engineHits)
	}
}

func TestPromptTooLongFailsBeforeSampling(t *testing.T) {
	t.Parallel()
	src := newFakeSource(4)
	cfg := testConfig()
	cfg.Prompt = "the quick fox"
	cfg.Length = 3

	_, err := Run(context.Background(), cfg, src, io.Discard)
	if !errors.Is(err, ErrPromptTooLong) {
		t.Fatalf("expected ErrPromptTooLong, got %v", err)
	}
	if src.engine.calls != 0 {
		t.Fatalf("expected no sampling calls, got %d", src.engine.calls)
	}
}

func TestPromptFillingWindowExactlyIsAccepted(t *testing.T) {
	t.Parallel()
	src := newFakeSource(4)
	cfg := testConfig()
	cfg.Prompt = "the quick fox"
	cfg.Length = 2
	cfg.NSamples = 1

	if _, err := Run(context.Background(), cfg, src, io.Discard); err != nil {
		t.Fatalf("3 prompt tokens + 2 sampled fit a window of 4: %v", err)
	}
	if src.engine.calls != 1 {
		t.Fatalf("expected 1 sampling call, got %d", src.engine.calls)
	}
}

func TestFitsWindow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n, length, nctx int
		want            bool
	}{
		{3, 2, 4, true},
		{3, 3, 4, false},
		{1, 32, 32, true},
		{1, 33, 32, false},
		{4, 0, 4, true},
	}
	for _, tc := range tests {
		if got := fitsWindow(tc.n, tc.length, tc.nctx); got != tc.want {
			t.Errorf("fitsWindow(%d, %d, %d): expected %v, got %v", tc.n, tc.length, tc.nctx, tc.want, got)
		}
	}
}

func TestEmptyPromptUsesEndOfText(t *testing.T) {
	t.Parallel()
	src := newFakeSource(8)
	cfg := testConfig()
	cfg.Prompt = ""
	cfg.NSamples = 1

	var out bytes.Buffer
	if _, err := Run(context.Background(), cfg, src, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.opts.StartToken != 4 {
		t.Fatalf("expected start token 4, got %d", src.opts.StartToken)
	}
	if len(src.engine.contexts[0][0]) != 0 {
		t.Fatalf("expected empty context rows, got %v", src.engine.contexts[0])
	}
	if !strings.Contains(out.String(), "fox fox fox") {
		t.Fatalf("expected sample text, got %q", out.String())
	}
}

func TestSamplingOptionsFromConfig(t *testing.T) {
	t.Parallel()
	src := newFakeSource(16)
	cfg := testConfig()
	cfg.Seed = int64p(99)
	cfg.Temperature = 0.7
	cfg.TopK = 0
	cfg.TopP = 0.9
	cfg.NSamples, cfg.BatchSize = 2, 2

	d, err := Open(context.Background(), cfg, src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	want := SamplingOptions{Length: 3, BatchSize: 2, Temperature: 0.7, TopK: 0, TopP: 0.9, Seed: 99, StartToken: 4}
	if src.opts != want {
		t.Fatalf("expected %+v, got %+v", want, src.opts)
	}
	if d.Seed() != 99 || d.Length() != 3 {
		t.Fatalf("unexpected driver seed=%d length=%d", d.Seed(), d.Length())
	}
}

func TestUnseededRunPicksSeed(t *testing.T) {
	t.Parallel()
	src := newFakeSource(16)
	cfg := testConfig()
	cfg.Seed = nil

	d, err := Open(context.Background(), cfg, src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	if d.Seed() == 0 || src.opts.Seed != d.Seed() {
		t.Fatalf("expected clock seed passed to engine, got driver=%d opts=%d", d.Seed(), src.opts.Seed)
	}
}

func TestResourceErrorsPropagate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		setup func(*fakeSource)
		want  error
	}{
		{"encoder", func(s *fakeSource) { s.encErr = ErrModelNotFound }, ErrModelNotFound},
		{"hparams", func(s *fakeSource) { s.hpErr = ErrHParamsNotFound }, ErrHParamsNotFound},
		{"checkpoint", func(s *fakeSource) { s.engineErr = ErrCheckpointNotFound }, ErrCheckpointNotFound},
		{"sampling", func(s *fakeSource) { s.engine.err = errBoom }, errBoom},
	}
	for _, tc := range tests {
		src := newFakeSource(16)
		tc.setup(src)
		var out bytes.Buffer
		_, err := Run(context.Background(), testConfig(), src, &out)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if strings.Contains(out.String(), Footer) {
			t.Errorf("%s: footer printed after failure", tc.name)
		}
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no model", func(c *Config) { c.ModelName = " " }},
		{"zero nsamples", func(c *Config) { c.NSamples = 0 }},
		{"negative batch", func(c *Config) { c.BatchSize = -1 }},
		{"negative length", func(c *Config) { c.Length = -1 }},
		{"zero temperature", func(c *Config) { c.Temperature = 0 }},
		{"negative top_k", func(c *Config) { c.TopK = -1 }},
		{"top_p above one", func(c *Config) { c.TopP = 1.5 }},
	}
	for _, tc := range tests {
		src := newFakeSource(16)
		cfg := testConfig()
		tc.mutate(&cfg)
		if _, err := Open(context.Background(), cfg, src); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
		if src.loads != 0 {
			t.Errorf("%s: expected no loading, got %d", tc.name, src.loads)
		}
	}
}

func TestResolveLength(t *testing.T) {
	t.Parallel()
	tests := []struct {
		length, nctx, want int
		err                error
	}{
		{0, 1024, 512, nil},
		{0, 7, 3, nil},
		{50, 1024, 50, nil},
		{1024, 1024, 1024, nil},
		{1025, 1024, 0, ErrLengthExceedsContext},
	}
	for _, tc := range tests {
		got, err := ResolveLength(tc.length, tc.nctx)
		if !errors.Is(err, tc.err) || got != tc.want {
			t.Errorf("ResolveLength(%d, %d): expected %d/%v, got %d/%v", tc.length, tc.nctx, tc.want, tc.err, got, err)
		}
	}
}

func TestInteractive(t *testing.T) {
	t.Parallel()
	src := newFakeSource(16)
	cfg := testConfig()
	cfg.NSamples = 1

	d, err := Open(context.Background(), cfg, src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	lines := []string{"", "the", "the quick fox jumps the quick fox jumps the quick fox jumps the quick", "fox"}
	var prompts []string
	readLine := func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		if len(lines) == 0 {
			return "", io.EOF
		}
		l := lines[0]
		lines = lines[1:]
		return l, nil
	}

	var out bytes.Buffer
	if err := d.Interactive(context.Background(), readLine, &out); err != nil {
		t.Fatalf("Interactive: %v", err)
	}
	if len(prompts) != 5 || prompts[0] != InteractivePrompt {
		t.Fatalf("expected 5 prompts of %q, got %q", InteractivePrompt, prompts)
	}
	if !strings.HasPrefix(out.String(), "Prompt should not be empty!\n") {
		t.Fatalf("expected empty prompt notice first, got %q", out.String())
	}
	if src.engine.calls != 2 {
		t.Fatalf("expected 2 sampling calls (long prompt skipped), got %d", src.engine.calls)
	}
	if strings.Count(out.String(), Banner(1)) != 2 || strings.Count(out.String(), Footer) != 2 {
		t.Fatalf("expected numbering to restart per prompt, got %q", out.String())
	}
}
