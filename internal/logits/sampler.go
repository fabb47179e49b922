// Package logits turns next-token logits into sampled token ids.
package logits

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
)

// SamplerConfig configures the behaviour of a Sampler.
//
// TopK 0 leaves the distribution unrestricted. TopP > 0 enables nucleus
// sampling and takes precedence over TopK.
type SamplerConfig struct {
	Seed        int64
	Temperature float32
	TopK        int
	TopP        float32
}

type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool
	topIdx []int
	topVal []float32
	prob   []float64
}

// NewSampler returns a new sampler with the provided configuration. A
// non-positive temperature selects greedy decoding.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature <= 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopK < 0 {
		cfg.TopK = 0
	}
	if cfg.TopP < 0 || cfg.TopP > 1 {
		cfg.TopP = 0
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
	}
}

// Config returns the effective configuration.
func (s *Sampler) Config() SamplerConfig { return s.cfg }

// Sample draws a single index from the provided logits vector:
//
//  1. Logits are scaled by the inverse temperature.
//  2. With TopP > 0 all candidates are sorted and the smallest prefix whose
//     cumulative probability reaches TopP is kept. Otherwise TopK > 0 keeps
//     the k largest values and TopK 0 keeps everything.
//  3. The shortlist is normalised with a max-subtracted softmax and an index
//     is drawn with the seeded RNG.
func (s *Sampler) Sample(logits []float32) int {
	if s.greedy || (s.cfg.TopK == 1 && s.cfg.TopP == 0) {
		return argmax(logits)
	}

	invTemp := 1 / s.cfg.Temperature
	var (
		topIdx []int
		topVal []float32
	)
	if s.cfg.TopP > 0 || s.cfg.TopK == 0 || s.cfg.TopK >= len(logits) {
		topIdx, topVal = s.sorted(logits, invTemp)
	} else {
		topIdx, topVal = s.topK(logits, s.cfg.TopK, invTemp)
	}
	if len(topVal) == 0 {
		return 0
	}

	if cap(s.prob) < len(topVal) {
		s.prob = make([]float64, len(topVal))
	}
	prob := s.prob[:len(topVal)]
	maxv := topVal[0]
	var sum float64
	for i := range topVal {
		e := math.Exp(float64(topVal[i] - maxv))
		prob[i] = e
		sum += e
	}
	if sum == 0 || math.IsNaN(sum) {
		return topIdx[0]
	}
	for i := range prob {
		prob[i] /= sum
	}

	cut := len(prob)
	if s.cfg.TopP > 0 {
		var c float64
		for i := range prob {
			c += prob[i]
			if c >= float64(s.cfg.TopP) {
				cut = i + 1
				break
			}
		}
		// Renormalise the nucleus.
		var kept float64
		for i := 0; i < cut; i++ {
			kept += prob[i]
		}
		for i := 0; i < cut; i++ {
			prob[i] /= kept
		}
	}

	r := s.rng.Float64()
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r < c {
			return topIdx[i]
		}
	}
	return topIdx[cut-1]
}

// argmax returns the index of the maximum value in the slice. If the slice is empty it panics.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// sorted returns every index ordered by descending scaled logit. Ties keep
// index order so draws are reproducible.
func (s *Sampler) sorted(logits []float32, invTemp float32) ([]int, []float32) {
	n := len(logits)
	if cap(s.topIdx) < n {
		s.topIdx = make([]int, n)
		s.topVal = make([]float32, n)
	}
	idx := s.topIdx[:n]
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(logits[b], logits[a])
	})
	val := s.topVal[:n]
	for i, id := range idx {
		val[i] = logits[id] * invTemp
	}
	return idx, val
}

// topK returns the indices and values of the k largest elements in logits, scaled by invTemp.
// The returned slices are ordered from largest to smallest by value.
// This is an O(V*K) algorithm suitable for small K.
func (s *Sampler) topK(logits []float32, k int, invTemp float32) ([]int, []float32) {
	if k <= 0 {
		return nil, nil
	}
	if cap(s.topIdx) < k+1 {
		s.topIdx = make([]int, 0, k+1)
		s.topVal = make([]float32, 0, k+1)
	}
	topIdx := s.topIdx[:0]
	topVal := s.topVal[:0]

	for i, l := range logits {
		v := l * invTemp

		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)

		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	s.topIdx = topIdx
	s.topVal = topVal
	return topIdx, topVal
}
