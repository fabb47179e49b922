package hparams

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeHParams(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write hparams: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeHParams(t, `{"n_ctx": 512, "n_layer": 6, "unknown": true}`)

	hp, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if hp.NCtx != 512 {
		t.Fatalf("expected n_ctx 512, got %d", hp.NCtx)
	}
	if hp.NLayer != 6 {
		t.Fatalf("expected n_layer 6, got %d", hp.NLayer)
	}
	def := Default()
	if hp.NVocab != def.NVocab || hp.NEmbd != def.NEmbd || hp.NHead != def.NHead {
		t.Fatalf("expected untouched fields to keep defaults, got %+v", hp)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	t.Parallel()
	path := writeHParams(t, `{"n_ctx": "wide"}`)
	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mod  func(*HParams)
		ok   bool
	}{
		{"default", func(*HParams) {}, true},
		{"zero ctx", func(h *HParams) { h.NCtx = 0 }, false},
		{"negative vocab", func(h *HParams) { h.NVocab = -1 }, false},
		{"heads do not divide embd", func(h *HParams) { h.NHead = 7 }, false},
		{"zero layers", func(h *HParams) { h.NLayer = 0 }, false},
	}
	for _, tc := range tests {
		hp := Default()
		tc.mod(&hp)
		err := hp.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got %v", tc.name, err)
		}
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()
	hp := Default()
	if hp.HeadDim() != 64 {
		t.Fatalf("expected head dim 64, got %d", hp.HeadDim())
	}
	if hp.EndOfText() != 50256 {
		t.Fatalf("expected end of text 50256, got %d", hp.EndOfText())
	}
}
