// Package encoder converts between text and GPT-2 token ids.
package encoder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	VocabFile  = "encoder.json"
	MergesFile = "vocab.bpe"

	// EndOfText separates documents in the GPT-2 training data.
	EndOfText = "<|endoftext|>"

	// FallbackEncoding is the tiktoken name of the GPT-2 vocabulary.
	FallbackEncoding = "r50k_base"
)

var ErrIncomplete = errors.New("encoder files incomplete")

// Encoder defines the interface used by the sampler driver.
type Encoder interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// Load resolves the encoder for a model directory. encoder.json and vocab.bpe
// are used when present; a directory carrying neither falls back to the
// tiktoken copy of the GPT-2 vocabulary.
func Load(dir string) (Encoder, error) {
	vocabPath := filepath.Join(dir, VocabFile)
	mergesPath := filepath.Join(dir, MergesFile)

	hasVocab := fileExists(vocabPath)
	hasMerges := fileExists(mergesPath)
	switch {
	case hasVocab && hasMerges:
		return LoadFiles(vocabPath, mergesPath)
	case hasVocab != hasMerges:
		return nil, fmt.Errorf("%w: %s needs both %s and %s", ErrIncomplete, dir, VocabFile, MergesFile)
	default:
		return NewTiktoken(FallbackEncoding)
	}
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
