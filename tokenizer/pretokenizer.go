// pretokenizer.go - Pre-Tokenizer Detection and Split
//
// HuggingFace BPE tokenizers segment text with a regex that uses
// lookahead (e.g. `\s+(?!\S)`), which Go's RE2-based regexp cannot
// express; dlclark/regexp2 runs the real pattern. Rather than trusting an
// arbitrary regex string from an untrusted checkpoint, the pattern is
// identified by a sha256 fingerprint the same way
// convert/tokenizer_parser.go's detectPreTokenizer does, and only a fixed
// set of known Qwen3/GPT-2-family patterns is ever compiled.
package tokenizer

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dlclark/regexp2"
)

// gpt2Split is the canonical GPT-2/Qwen byte-level pretokenizer pattern:
// contractions, runs of letters, runs of digits, runs of other symbols,
// and trailing whitespace, with lookahead so whitespace attaches to the
// token that follows it.
const gpt2Split = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// knownPretokenizers maps a sha256 digest of a pretokenizer's regex
// source to the preset this engine knows how to run. An unrecognized
// digest falls back to "default" (plain byte-level split, no regex)
// rather than failing export outright.
var knownPretokenizers = map[string]string{
	fingerprint(gpt2Split): "qwen",
}

func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// presetRegex wraps a compiled pretokenizer pattern, or nil for the
// "default" preset (no splitting beyond raw bytes).
type presetRegex struct {
	re *regexp2.Regexp
}

// DetectPreset identifies which pretokenizer pattern a source
// tokenizer.json uses from the raw regex string found in its
// pre_tokenizer.pretokenizers[].pattern.Regex field (may be empty).
func DetectPreset(rawRegex string) string {
	if rawRegex == "" {
		return "default"
	}
	if name, ok := knownPretokenizers[fingerprint(rawRegex)]; ok {
		return name
	}
	return "default"
}

// compilePreset returns the regex to run for a named preset, or nil for
// "default".
func compilePreset(name string) (*presetRegex, error) {
	switch name {
	case "qwen":
		re, err := regexp2.Compile(gpt2Split, regexp2.None)
		if err != nil {
			return nil, err
		}
		re.MatchTimeout = -1
		return &presetRegex{re: re}, nil
	default:
		return nil, nil
	}
}

// split breaks s into pretokenized chunks. A nil receiver (the "default"
// preset) returns the whole string as a single chunk.
func (p *presetRegex) split(s string) []string {
	if p == nil || p.re == nil {
		return []string{s}
	}

	var chunks []string
	m, _ := p.re.FindStringMatch(s)
	for m != nil {
		chunks = append(chunks, m.String())
		m, _ = p.re.FindNextMatch(m)
	}
	if chunks == nil {
		return []string{s}
	}
	return chunks
}
