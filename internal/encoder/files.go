package encoder

import (
	"bufio"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// LoadFiles builds a BPE encoder from an encoder.json token map and a
// vocab.bpe merge list.
func LoadFiles(vocabPath, mergesPath string) (*BPE, error) {
	raw, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, err
	}
	var vocab map[string]int
	if err := json.Unmarshal(raw, &vocab); err != nil {
		return nil, fmt.Errorf("parse %s: %w", vocabPath, err)
	}

	merges, err := readLines(mergesPath)
	if err != nil {
		return nil, err
	}
	return NewBPE(vocab, merges)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
