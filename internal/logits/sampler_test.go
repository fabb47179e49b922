package logits

import "testing"

// TestSamplerDeterminism ensures that two samplers configured identically
// produce identical sequences when sampling the same logits vector.
func TestSamplerDeterminism(t *testing.T) {
	t.Parallel()
	logs := []float32{0, 1, 2, 3, 4, 5}
	s1 := NewSampler(SamplerConfig{Seed: 42, Temperature: 1.3, TopK: 4})
	s2 := NewSampler(SamplerConfig{Seed: 42, Temperature: 1.3, TopK: 4})
	for i := 0; i < 20; i++ {
		a := s1.Sample(logs)
		b := s2.Sample(logs)
		if a != b {
			t.Fatalf("draw %d: expected deterministic sample, got %d vs %d", i, a, b)
		}
	}
}

func TestSamplerGreedy(t *testing.T) {
	t.Parallel()
	logs := []float32{-1, 5, 3, 7, 2}
	tests := []struct {
		name string
		cfg  SamplerConfig
	}{
		{"top_k=1", SamplerConfig{Seed: 99, Temperature: 1.0, TopK: 1}},
		{"temperature=0", SamplerConfig{Seed: 99, Temperature: 0, TopK: 40}},
	}
	for _, tc := range tests {
		s := NewSampler(tc.cfg)
		if idx := s.Sample(logs); idx != 3 {
			t.Errorf("%s: expected greedy index 3, got %d", tc.name, idx)
		}
	}
}

func TestSamplerTopKRestrictsCandidates(t *testing.T) {
	t.Parallel()
	logs := []float32{4, 0, 3.9, 0, 0, 0}
	s := NewSampler(SamplerConfig{Seed: 1, Temperature: 1, TopK: 2})
	for i := 0; i < 200; i++ {
		if idx := s.Sample(logs); idx != 0 && idx != 2 {
			t.Fatalf("top-k sampling returned index %d outside the top 2", idx)
		}
	}
}

// TestSamplerTopP ensures that TopP restricts sampling to the nucleus, even
// when TopK alone would allow more candidates.
func TestSamplerTopP(t *testing.T) {
	t.Parallel()
	logs := []float32{0, 10, 0, 0, 0}
	s := NewSampler(SamplerConfig{Seed: 7, Temperature: 1.0, TopK: 5, TopP: 0.5})
	for i := 0; i < 50; i++ {
		if idx := s.Sample(logs); idx != 1 {
			t.Fatalf("top-p sampling returned unexpected index %d", idx)
		}
	}
}

func TestSamplerUnrestrictedReachesEveryToken(t *testing.T) {
	t.Parallel()
	logs := []float32{0, 0, 0, 0}
	s := NewSampler(SamplerConfig{Seed: 3, Temperature: 1, TopK: 0})
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		seen[s.Sample(logs)] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected all 4 tokens to be drawn, got %v", seen)
	}
}

func TestNewSamplerNormalisesConfig(t *testing.T) {
	t.Parallel()
	cfg := NewSampler(SamplerConfig{Temperature: 0.7, TopK: -3, TopP: 2}).Config()
	if cfg.TopK != 0 || cfg.TopP != 0 || cfg.Temperature != 0.7 {
		t.Fatalf("unexpected normalised config %+v", cfg)
	}
}
