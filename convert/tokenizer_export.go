// tokenizer_export.go - tokenizer.json -> Sidecar File
//
// Parses a HuggingFace tokenizer.json (BPE model: vocab map, merge list,
// added special tokens, pre_tokenizer regex) into a tokenizer.Vocabulary
// and writes the sidecar file. Mirrors convert_model.go's
// parseTokenizer/vocabulary.go handling of the same source format, and
// tokenizer_parser.go's detectPreTokenizer fingerprinting for the regex.
package convert

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/PieBru/pico-qwen/tokenizer"
)

type hfTokenizerJSON struct {
	Model struct {
		Type   string           `json:"type"`
		Vocab  map[string]int32 `json:"vocab"`
		Merges json.RawMessage  `json:"merges"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int32  `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
	PreTokenizer json.RawMessage `json:"pre_tokenizer"`
}

// ExportTokenizer reads tokenizer.json from fsys and writes the sidecar
// file to outPath.
func ExportTokenizer(fsys fs.FS, outPath string) error {
	bts, err := fs.ReadFile(fsys, "tokenizer.json")
	if err != nil {
		return err
	}

	var doc hfTokenizerJSON
	if err := json.Unmarshal(bts, &doc); err != nil {
		return err
	}
	if doc.Model.Type != "" && doc.Model.Type != "BPE" {
		return fmt.Errorf("convert: unsupported tokenizer model type %q", doc.Model.Type)
	}

	v := &tokenizer.Vocabulary{}
	buildVocabulary(v, doc)

	if rawRegex := extractPretokenizerRegex(doc.PreTokenizer); rawRegex != "" {
		preset := tokenizer.DetectPreset(rawRegex)
		slog.Info("detected pretokenizer preset", "preset", preset)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return tokenizer.Save(f, v)
}

// buildVocabulary populates v's exported fields directly (Save writes
// Tokens/Scores/Special plus the max token length Build computes; the
// merge table is not persisted, Load reconstructs it from Tokens and
// Scores).
func buildVocabulary(v *tokenizer.Vocabulary, doc hfTokenizerJSON) {
	maxID := int32(-1)
	for _, id := range doc.Model.Vocab {
		if id > maxID {
			maxID = id
		}
	}
	for _, t := range doc.AddedTokens {
		if t.ID > maxID {
			maxID = t.ID
		}
	}

	size := int(maxID) + 1
	tokens := make([][]byte, size)
	for tok, id := range doc.Model.Vocab {
		tokens[id] = []byte(tok)
	}
	for _, t := range doc.AddedTokens {
		tokens[t.ID] = []byte(t.Content)
	}

	merges := parseMerges(doc.Model.Merges)
	scores := make([]float32, size)
	for rank, tok := range mergeOrderTokens(tokens, merges) {
		scores[tok] = -float32(rank)
	}

	v.Tokens = tokens
	v.Scores = scores
	v.Special = specialTokensFrom(doc)
	v.Build()
}

func parseMerges(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var asStrings []string
	if err := json.Unmarshal(raw, &asStrings); err == nil {
		return asStrings
	}

	var asPairs [][2]string
	if err := json.Unmarshal(raw, &asPairs); err == nil {
		out := make([]string, len(asPairs))
		for i, p := range asPairs {
			out[i] = p[0] + " " + p[1]
		}
		return out
	}

	return nil
}

// mergeOrderTokens assigns each multi-byte token a rank equal to its
// position in the merge list, so Scores preserves merge priority
// ordering (lower score = higher priority).
func mergeOrderTokens(tokens [][]byte, merges []string) []int {
	rankOf := make(map[string]int, len(merges))
	for i, m := range merges {
		parts := strings.SplitN(m, " ", 2)
		if len(parts) != 2 {
			continue
		}
		rankOf[parts[0]+parts[1]] = i
	}

	order := make([]int, 0, len(tokens))
	for id, tok := range tokens {
		if _, ok := rankOf[string(tok)]; ok {
			order = append(order, id)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		return rankOf[string(tokens[order[i]])] < rankOf[string(tokens[order[j]])]
	})
	return order
}

func specialTokensFrom(doc hfTokenizerJSON) tokenizer.SpecialTokens {
	st := tokenizer.SpecialTokens{
		BOS: tokenizer.NoToken, EOS: tokenizer.NoToken,
		PAD: tokenizer.NoToken, UNK: tokenizer.NoToken,
		ChatSystem: tokenizer.NoToken, ChatUser: tokenizer.NoToken,
		ChatAssistant: tokenizer.NoToken, ChatEnd: tokenizer.NoToken,
	}
	for _, t := range doc.AddedTokens {
		switch t.Content {
		case "<|endoftext|>", "<|im_end|>":
			st.EOS = t.ID
			if t.Content == "<|im_end|>" {
				st.ChatEnd = t.ID
			}
		case "<|im_start|>":
			st.ChatUser = t.ID
			st.ChatSystem = t.ID
			st.ChatAssistant = t.ID
		}
	}
	return st
}

func extractPretokenizerRegex(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var probe struct {
		Pattern struct {
			Regex string `json:"Regex"`
		} `json:"pattern"`
		Pretokenizers []struct {
			Pattern struct {
				Regex string `json:"Regex"`
			} `json:"pattern"`
		} `json:"pretokenizers"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	if probe.Pattern.Regex != "" {
		return probe.Pattern.Regex
	}
	for _, p := range probe.Pretokenizers {
		if p.Pattern.Regex != "" {
			return p.Pattern.Regex
		}
	}
	return ""
}
