package embedding

import "strings"

// CLIP text encoder token constants.
const (
	// ContextLength is the fixed token sequence length of the CLIP text encoder.
	ContextLength = 77
	bosToken      = 49406
	eosToken      = 49407
	vocabSize     = 49408
)

// Tokenizer produces fixed-length token ID sequences for the text encoder.
type Tokenizer interface {
	Tokenize(text string) []int64
}

// SimpleTokenizer is a lower-cased word-split tokenizer with hash-based token
// IDs. It stands in for the CLIP BPE vocabulary: deterministic and cheap,
// with the same BOS/EOS/padding layout the text encoder expects.
type SimpleTokenizer struct{}

// Tokenize returns a padded token ID sequence of length ContextLength.
func (t *SimpleTokenizer) Tokenize(text string) []int64 {
	words := strings.Fields(strings.ToLower(text))
	ids := make([]int64, ContextLength)
	ids[0] = bosToken
	pos := 1
	for _, word := range words {
		if pos >= ContextLength-1 {
			break
		}
		ids[pos] = int64(HashString(word) % (vocabSize - 2))
		pos++
	}
	ids[pos] = eosToken
	return ids
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
