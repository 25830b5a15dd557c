// Package tokenizer - Vocabulary and Special-Token Table
//
// Vocabulary is an ordered (bytes, score) table indexed by token id, with
// a reverse bytes->id map, a merge-priority table, and the special-token
// table.
package tokenizer

// NoToken marks a special-token slot that has no id in the source
// tokenizer.json.
const NoToken int32 = -1

// SpecialTokens holds bos, eos, pad, unk, and the chat frame markers,
// populated from tokenizer.json when present.
type SpecialTokens struct {
	BOS           int32
	EOS           int32
	PAD           int32
	UNK           int32
	ChatSystem    int32 // <|im_start|>system equivalent
	ChatUser      int32 // <|im_start|>user equivalent
	ChatAssistant int32 // <|im_start|>assistant equivalent
	ChatEnd       int32 // <|im_end|> equivalent
}

// Vocabulary holds the full byte-level BPE table: token bytes and scores
// indexed by id, a reverse lookup, the merge-priority table, and the
// special-token IDs.
type Vocabulary struct {
	Tokens  [][]byte // indexed by token id
	Scores  []float32
	Special SpecialTokens

	reverse     map[string]int32
	merges      map[string]int // "left right" (byte-alphabet strings) -> rank, lower = higher priority
	byteToken   [256]int32     // base byte alphabet: raw byte -> token id
	maxTokenLen int
	pretokenRe  *presetRegex
}

// Size is the vocabulary's token count.
func (v *Vocabulary) Size() int { return len(v.Tokens) }

// MaxTokenLen is the longest token's byte length, used by the sidecar
// file header.
func (v *Vocabulary) MaxTokenLen() int { return v.maxTokenLen }

// IDOf looks up the id for an exact token byte string, used by the fast
// whole-chunk path in Encode.
func (v *Vocabulary) IDOf(b []byte) (int32, bool) {
	id, ok := v.reverse[string(b)]
	return id, ok
}

// ByteTokenID returns the base-alphabet token id for a single raw byte.
func (v *Vocabulary) ByteTokenID(b byte) int32 { return v.byteToken[b] }

// MergeRank returns the priority of merging left+right (lower is higher
// priority) and whether such a merge exists at all.
func (v *Vocabulary) MergeRank(left, right []byte) (int, bool) {
	rank, ok := v.merges[string(left)+" "+string(right)]
	return rank, ok
}

// Build finalizes derived fields (reverse map, byte alphabet, max token
// length) after Tokens/Scores/merges are populated. Called once by both
// the file loader and the exporter's tokenizer-file writer path.
func (v *Vocabulary) Build() {
	v.reverse = make(map[string]int32, len(v.Tokens))
	for id, tok := range v.Tokens {
		v.reverse[string(tok)] = int32(id)
		if len(tok) > v.maxTokenLen {
			v.maxTokenLen = len(tok)
		}
	}
	for i := range v.byteToken {
		v.byteToken[i] = NoToken
	}
	for id, tok := range v.Tokens {
		if len(tok) == 1 {
			v.byteToken[tok[0]] = int32(id)
		}
	}
}
