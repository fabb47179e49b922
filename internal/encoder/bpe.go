package encoder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
)

// gpt2Pattern is the GPT-2 pre-tokenizer. The \s+(?!\S) branch leaves the
// last space of a whitespace run to the following word, which needs the
// lookahead support of regexp2.
var gpt2Pattern = regexp2.MustCompile(`'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`, regexp2.None)

// BPE is the GPT-2 byte-level byte-pair encoder.
type BPE struct {
	encoder     map[string]int
	decoder     []string
	bpeRanks    map[Pair]int
	byteEncoder map[byte]string
	byteDecoder map[string]byte
	special     []string

	mu    sync.Mutex
	cache map[string][]string
}

// NewBPE builds an encoder from a token→id map and an ordered merge list.
// Blank lines and lines starting with '#' (the "#version" header) are skipped.
func NewBPE(vocab map[string]int, merges []string) (*BPE, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("empty token list")
	}
	maxID := -1
	for tok, id := range vocab {
		if id < 0 {
			return nil, fmt.Errorf("negative id %d for token %q", id, tok)
		}
		maxID = max(maxID, id)
	}
	decoder := make([]string, maxID+1)
	tokens := make([]string, 0, len(vocab))
	for tok, id := range vocab {
		decoder[id] = tok
		tokens = append(tokens, tok)
	}

	bpeRanks := make(map[Pair]int, len(merges))
	rank := 0
	for _, line := range merges {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			continue
		}
		p := Pair{A: parts[0], B: parts[1]}
		if _, ok := bpeRanks[p]; !ok {
			bpeRanks[p] = rank
			rank++
		}
	}

	byteEncoder, byteDecoder := bytesToUnicode()
	return &BPE{
		encoder:     vocab,
		decoder:     decoder,
		bpeRanks:    bpeRanks,
		byteEncoder: byteEncoder,
		byteDecoder: byteDecoder,
		special:     collectSpecials(tokens),
		cache:       make(map[string][]string),
	}, nil
}

func (t *BPE) Encode(text string) ([]int, error) {
	var ids []int
	for _, part := range splitSpecials(text, t.special) {
		if part.isSpecial {
			id, ok := t.encoder[part.text]
			if !ok {
				return nil, fmt.Errorf("unknown special token: %q", part.text)
			}
			ids = append(ids, id)
			continue
		}
		words, err := pretokenize(part.text)
		if err != nil {
			return nil, err
		}
		for _, token := range words {
			for _, bpeTok := range t.bpe(t.byteEncode(token)) {
				id, ok := t.encoder[bpeTok]
				if !ok {
					return nil, fmt.Errorf("unknown token: %q", bpeTok)
				}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (t *BPE) Decode(ids []int) (string, error) {
	var b []byte
	for _, id := range ids {
		if id < 0 || id >= len(t.decoder) || t.decoder[id] == "" {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		for _, r := range t.decoder[id] {
			if by, ok := t.byteDecoder[string(r)]; ok {
				b = append(b, by)
			} else {
				b = append(b, string(r)...)
			}
		}
	}
	return string(b), nil
}

// VocabSize reports the number of entries in the id space.
func (t *BPE) VocabSize() int { return len(t.decoder) }

func (t *BPE) byteEncode(s string) string {
	var b strings.Builder
	for _, by := range []byte(s) {
		b.WriteString(t.byteEncoder[by])
	}
	return b.String()
}

func (t *BPE) bpe(token string) []string {
	t.mu.Lock()
	v, ok := t.cache[token]
	t.mu.Unlock()
	if ok {
		return v
	}

	word := splitRunes(token)
	pairs := getPairs(word)
	for len(pairs) > 0 {
		bestRank := int(^uint(0) >> 1)
		bestPair := Pair{}
		found := false
		for p := range pairs {
			if rank, ok := t.bpeRanks[p]; ok && rank < bestRank {
				bestRank = rank
				bestPair = p
				found = true
			}
		}
		if !found {
			break
		}
		word = mergePair(word, bestPair)
		if len(word) == 1 {
			break
		}
		pairs = getPairs(word)
	}

	t.mu.Lock()
	t.cache[token] = word
	t.mu.Unlock()
	return word
}

// pretokenize splits text into the words BPE runs on.
func pretokenize(text string) ([]string, error) {
	var words []string
	m, err := gpt2Pattern.FindStringMatch(text)
	for m != nil && err == nil {
		words = append(words, m.String())
		m, err = gpt2Pattern.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("pre-tokenize: %w", err)
	}
	return words, nil
}
