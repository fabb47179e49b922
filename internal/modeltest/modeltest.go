// Package modeltest writes tiny but complete model directories for tests.
package modeltest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/samcharles93/sampler/internal/checkpoint"
	"github.com/samcharles93/sampler/internal/encoder"
	"github.com/samcharles93/sampler/internal/hparams"
	"github.com/samcharles93/sampler/internal/model"
)

// Merged symbols appended after the byte vocabulary, in id order.
var merged = []string{"he", "ll", "hell", "hello"}

var merges = []string{"#version: 0.2", "h e", "l l", "he ll", "hell o"}

// HParams is the shape of every fixture model. The vocabulary is the 256
// byte symbols, the merged words above and <|endoftext|>.
func HParams() hparams.HParams {
	return hparams.HParams{
		NVocab: 256 + len(merged) + 1,
		NCtx:   32,
		NEmbd:  8,
		NHead:  2,
		NLayer: 2,
	}
}

// Write creates <modelsDir>/<name> with hparams.json, encoder files and a
// random safetensors checkpoint, returning the model directory.
func Write(t testing.TB, modelsDir, name string, seed int64) string {
	t.Helper()
	dir := filepath.Join(modelsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	hp := HParams()

	writeJSON(t, filepath.Join(dir, hparams.FileName), map[string]int{
		"n_vocab": hp.NVocab,
		"n_ctx":   hp.NCtx,
		"n_embd":  hp.NEmbd,
		"n_head":  hp.NHead,
		"n_layer": hp.NLayer,
	})

	vocab := encoder.ByteVocab()
	for i, sym := range merged {
		vocab[sym] = 256 + i
	}
	vocab[encoder.EndOfText] = hp.EndOfText()
	writeJSON(t, filepath.Join(dir, encoder.VocabFile), vocab)
	writeFile(t, filepath.Join(dir, encoder.MergesFile), strings.Join(merges, "\n")+"\n")

	if err := checkpoint.Save(filepath.Join(dir, "model-1.safetensors"), model.NewRandom(hp, seed)); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	return dir
}

func writeJSON(t testing.TB, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	writeFile(t, path, string(data))
}

func writeFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
