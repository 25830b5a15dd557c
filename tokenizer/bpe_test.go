package tokenizer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildTestVocab constructs a minimal byte-level vocabulary with merges
// sufficient to round-trip "hello" through encode/decode (spec scenario
// S3), grounded on the fixture style in convert/tokenizer_parser_test.go.
func buildTestVocab(t *testing.T) *Vocabulary {
	t.Helper()

	v := &Vocabulary{
		Special: SpecialTokens{
			BOS: NoToken, EOS: NoToken, PAD: NoToken, UNK: NoToken,
			ChatSystem: NoToken, ChatUser: NoToken, ChatAssistant: NoToken, ChatEnd: NoToken,
		},
		merges: map[string]int{},
	}

	for b := 0; b < 256; b++ {
		v.Tokens = append(v.Tokens, []byte{byte(b)})
		v.Scores = append(v.Scores, 0)
	}
	addMerge := func(left, right string, rank int) string {
		merged := left + right
		v.Tokens = append(v.Tokens, []byte(merged))
		v.Scores = append(v.Scores, 0)
		v.merges[left+" "+right] = rank
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

func TestEncodeDecodeRoundTripHello(t *testing.T) {
	v := buildTestVocab(t)

	ids, err := v.Encode("hello", ChatFraming{})
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	dec := NewDecoder(v)
	var out bytes.Buffer
	for _, id := range ids {
		text, err := dec.Push(id)
		require.NoError(t, err)
		out.WriteString(text)
	}
	tail, err := dec.Flush()
	require.NoError(t, err)
	out.WriteString(tail)

	require.Equal(t, "hello", out.String())
}

func TestEncodeWholeTokenChunkYieldsSingleID(t *testing.T) {
	v := buildTestVocab(t)

	ids, err := v.Encode("hello", ChatFraming{})
	require.NoError(t, err)

	helloTokenID, ok := v.IDOf([]byte("hello"))
	require.True(t, ok)
	require.Equal(t, []int32{helloTokenID}, ids)
}

func TestEncodeCascadesMergesAcrossNodes(t *testing.T) {
	v := buildTestVocab(t)

	ids, err := v.Encode("helloo", ChatFraming{})
	require.NoError(t, err)

	helloID, ok := v.IDOf([]byte("hello"))
	require.True(t, ok)
	oID := v.ByteTokenID('o')
	require.Equal(t, []int32{helloID, oID}, ids)
}

func TestEncodeEmptyString(t *testing.T) {
	v := buildTestVocab(t)
	ids, err := v.Encode("", ChatFraming{})
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestEncodeUnmergedBytesFallThrough(t *testing.T) {
	v := buildTestVocab(t)
	ids, err := v.Encode("x", ChatFraming{})
	require.NoError(t, err)
	require.Equal(t, []int32{v.ByteTokenID('x')}, ids)
}
