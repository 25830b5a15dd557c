package tokenizer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	v := &Vocabulary{
		Tokens: [][]byte{[]byte("a"), []byte("b"), []byte("ab")},
		Scores: []float32{-1.5, -2.0, -0.5},
		Special: SpecialTokens{
			BOS: 0, EOS: 1, PAD: NoToken, UNK: NoToken,
			ChatSystem: NoToken, ChatUser: NoToken, ChatAssistant: NoToken, ChatEnd: NoToken,
		},
		merges: map[string]int{"a b": 0},
	}
	v.Build()

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, v))

	loaded, err := Load(&buf, 3, "default")
	require.NoError(t, err)

	require.Equal(t, v.Tokens, loaded.Tokens)
	require.Equal(t, v.Scores, loaded.Scores)
	rank, ok := loaded.MergeRank([]byte("a"), []byte("b"))
	require.True(t, ok)
	require.Equal(t, 0, rank)
	require.Equal(t, int32(0), loaded.Special.BOS)
	require.Equal(t, int32(1), loaded.Special.EOS)
	require.Equal(t, 2, loaded.MaxTokenLen())
}

func TestLoadRejectsTruncatedFile(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte{1, 2}), 1, "default")
	require.Error(t, err)
}

func TestSaveLoadPreservesNoTokenSpecials(t *testing.T) {
	v := &Vocabulary{
		Tokens:  [][]byte{[]byte("x")},
		Scores:  []float32{0},
		Special: SpecialTokens{BOS: NoToken, EOS: NoToken},
		merges:  map[string]int{},
	}
	v.Build()

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, v))

	loaded, err := Load(&buf, 1, "default")
	require.NoError(t, err)
	require.Equal(t, NoToken, loaded.Special.BOS)
	require.Equal(t, NoToken, loaded.Special.EOS)
}
