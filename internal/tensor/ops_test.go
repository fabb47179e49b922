package tensor

import (
	"math"
	"testing"
)

func TestSoftmaxSumsToOne(t *testing.T) {
	t.Parallel()
	x := []float32{1, 2, 3, 4}
	Softmax(x)
	var sum float64
	for i, v := range x {
		sum += float64(v)
		if i > 0 && x[i] <= x[i-1] {
			t.Fatalf("softmax must preserve ordering, got %v", x)
		}
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("expected sum 1, got %f", sum)
	}
}

func TestSoftmaxLargeValuesStable(t *testing.T) {
	t.Parallel()
	x := []float32{1000, 1000}
	Softmax(x)
	if math.Abs(float64(x[0])-0.5) > 1e-6 || math.Abs(float64(x[1])-0.5) > 1e-6 {
		t.Fatalf("expected [0.5 0.5], got %v", x)
	}
}

func TestLayerNormUnitWeights(t *testing.T) {
	t.Parallel()
	src := []float32{1, 2, 3, 4}
	dst := make([]float32, 4)
	LayerNorm(dst, src, []float32{1, 1, 1, 1}, []float32{0, 0, 0, 0}, 1e-5)

	var mean, variance float64
	for _, v := range dst {
		mean += float64(v)
	}
	mean /= 4
	for _, v := range dst {
		variance += (float64(v) - mean) * (float64(v) - mean)
	}
	variance /= 4
	if math.Abs(mean) > 1e-5 {
		t.Fatalf("expected zero mean, got %f", mean)
	}
	if math.Abs(variance-1) > 1e-3 {
		t.Fatalf("expected unit variance, got %f", variance)
	}
}

func TestLayerNormAffine(t *testing.T) {
	t.Parallel()
	src := []float32{-1, 1}
	LayerNorm(src, src, []float32{2, 2}, []float32{1, 1}, 0)
	want := []float32{-1, 3}
	if d := maxAbsDiff(src, want); d > 1e-5 {
		t.Fatalf("expected %v, got %v", want, src)
	}
}

func TestGELU(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want float32
	}{
		{0, 0},
		{1, 0.8411920},
		{-1, -0.1588080},
		{3, 2.9963627},
	}
	for _, tc := range tests {
		x := []float32{tc.in}
		GELU(x)
		if math.Abs(float64(x[0]-tc.want)) > 1e-5 {
			t.Errorf("GELU(%v): expected %v, got %v", tc.in, tc.want, x[0])
		}
	}
}

func TestDot(t *testing.T) {
	t.Parallel()
	if got := Dot([]float32{1, 2, 3}, []float32{4, 5, 6}); got != 32 {
		t.Fatalf("expected 32, got %v", got)
	}
}
