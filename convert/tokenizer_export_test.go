package convert

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/PieBru/pico-qwen/tokenizer"
	"github.com/stretchr/testify/require"
)

func TestExportTokenizerWritesSidecarFile(t *testing.T) {
	doc := map[string]any{
		"model": map[string]any{
			"type":   "BPE",
			"vocab":  map[string]int32{"a": 0, "b": 1, "ab": 2},
			"merges": []string{"a b"},
		},
		"added_tokens": []map[string]any{
			{"id": 3, "content": "<|endoftext|>", "special": true},
		},
	}
	bts, err := json.Marshal(doc)
	require.NoError(t, err)
	fsys := fstest.MapFS{"tokenizer.json": &fstest.MapFile{Data: bts}}

	outPath := filepath.Join(t.TempDir(), "out.tok")
	require.NoError(t, ExportTokenizer(fsys, outPath))

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	loaded, err := tokenizer.Load(f, 4, "default")
	require.NoError(t, err)
	require.Equal(t, 4, loaded.Size())
	require.Equal(t, int32(3), loaded.Special.EOS)

	id, ok := loaded.IDOf([]byte("ab"))
	require.True(t, ok)
	require.Equal(t, int32(2), id)

	rank, ok := loaded.MergeRank([]byte("a"), []byte("b"))
	require.True(t, ok)
	require.Equal(t, 0, rank)
}

func TestExportTokenizerRejectsNonBPEModel(t *testing.T) {
	doc := map[string]any{"model": map[string]any{"type": "WordPiece"}}
	bts, err := json.Marshal(doc)
	require.NoError(t, err)
	fsys := fstest.MapFS{"tokenizer.json": &fstest.MapFile{Data: bts}}

	err = ExportTokenizer(fsys, filepath.Join(t.TempDir(), "out.tok"))
	require.Error(t, err)
}
