//go:build onnx

package inference

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/sampler/internal/hparams"
	"github.com/samcharles93/sampler/internal/model"
)

// onnxModelDir returns a model directory holding hparams.json and a GPT-2
// model.onnx exported with past_key_values, named by SAMPLER_ONNX_MODEL_DIR.
func onnxModelDir(t *testing.T) (string, hparams.HParams) {
	t.Helper()
	if os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH") == "" {
		t.Skip("ONNXRUNTIME_SHARED_LIBRARY_PATH not set")
	}
	dir := os.Getenv("SAMPLER_ONNX_MODEL_DIR")
	if dir == "" {
		t.Skip("SAMPLER_ONNX_MODEL_DIR not set")
	}
	hp, err := hparams.Load(filepath.Join(dir, hparams.FileName))
	if err != nil {
		t.Fatalf("load hparams: %v", err)
	}
	return dir, hp
}

func openONNX(t *testing.T, dir string, hp hparams.HParams) model.Model {
	t.Helper()
	m, err := newONNXModel(filepath.Join(dir, ONNXFile), hp)
	if err != nil {
		t.Fatalf("newONNXModel: %v", err)
	}
	t.Cleanup(func() {
		if c, ok := m.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	})
	return m
}

func TestONNXModelMissingFile(t *testing.T) {
	_, err := newONNXModel(filepath.Join(t.TempDir(), ONNXFile), hparams.Default())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestONNXModelForwardAndReset(t *testing.T) {
	dir, hp := onnxModelDir(t)
	m := openONNX(t, dir, hp)

	first, err := m.ForwardToken(hp.EndOfText())
	if err != nil {
		t.Fatalf("ForwardToken: %v", err)
	}
	if len(first) != hp.NVocab {
		t.Fatalf("expected %d logits, got %d", hp.NVocab, len(first))
	}
	for i, v := range first {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("logit %d is not finite: %v", i, v)
		}
	}
	if _, err := m.ForwardToken(0); err != nil {
		t.Fatalf("second ForwardToken: %v", err)
	}

	m.Reset()
	again, err := m.ForwardToken(hp.EndOfText())
	if err != nil {
		t.Fatalf("ForwardToken after Reset: %v", err)
	}
	for i := range first {
		if math.Abs(float64(first[i]-again[i])) > 1e-4 {
			t.Fatalf("logit %d differs after Reset: %v vs %v", i, first[i], again[i])
		}
	}
}

func TestONNXModelContextFull(t *testing.T) {
	dir, hp := onnxModelDir(t)
	hp.NCtx = 2
	m := openONNX(t, dir, hp)

	for i := 0; i < hp.NCtx; i++ {
		if _, err := m.ForwardToken(0); err != nil {
			t.Fatalf("ForwardToken %d: %v", i, err)
		}
	}
	if _, err := m.ForwardToken(0); !errors.Is(err, model.ErrContextFull) {
		t.Fatalf("expected ErrContextFull, got %v", err)
	}

	m.Reset()
	if _, err := m.ForwardToken(0); err != nil {
		t.Fatalf("expected Reset to free the window, got %v", err)
	}
}
