package tokenizer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildScoredVocab mirrors buildTestVocab's "hello"/"helloo" fixture but
// assigns each merged token a real score (-rank), the way the exporter's
// mergeOrderTokens actually does, so Load's deriveMerges has real
// ordering information to reconstruct from.
func buildScoredVocab(t *testing.T) *Vocabulary {
	t.Helper()

	v := &Vocabulary{
		Special: SpecialTokens{
			BOS: NoToken, EOS: NoToken, PAD: NoToken, UNK: NoToken,
			ChatSystem: NoToken, ChatUser: NoToken, ChatAssistant: NoToken, ChatEnd: NoToken,
		},
	}

	for b := 0; b < 256; b++ {
		v.Tokens = append(v.Tokens, []byte{byte(b)})
		v.Scores = append(v.Scores, 0)
	}
	addMerge := func(left, right string, rank int) string {
		merged := left + right
		v.Tokens = append(v.Tokens, []byte(merged))
		v.Scores = append(v.Scores, -float32(rank))
		return merged
	}

	addMerge("h", "e", 0)
	addMerge("l", "l", 1)
	hell := addMerge("he", "ll", 2)
	addMerge(hell, "o", 3)

	v.Build()

	re, err := compilePreset("default")
	require.NoError(t, err)
	v.pretokenRe = re

	return v
}

// TestLoadReconstructsMergesFromScores verifies that a Vocabulary rebuilt
// purely from Tokens+Scores (as Load sees it, since the sidecar format
// never persists an explicit merge-pair table) still encodes "helloo"
// with the same cascading merges as the originally constructed vocabulary.
func TestLoadReconstructsMergesFromScores(t *testing.T) {
	original := buildScoredVocab(t)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, original))

	loaded, err := Load(&buf, original.Size(), "default")
	require.NoError(t, err)

	ids, err := loaded.Encode("helloo", ChatFraming{})
	require.NoError(t, err)

	helloID, ok := loaded.IDOf([]byte("hello"))
	require.True(t, ok)
	oID := loaded.ByteTokenID('o')
	require.Equal(t, []int32{helloID, oID}, ids)
}
