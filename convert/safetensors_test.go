package convert

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

// buildSafetensors assembles a minimal single-shard safetensors file
// containing one F32 tensor, matching the 8-byte-length-prefixed JSON
// header + raw data layout the format defines.
func buildSafetensors(t *testing.T, name string, shape []int, values []float32) []byte {
	t.Helper()

	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}

	header := map[string]any{
		name: map[string]any{
			"dtype":        "F32",
			"shape":        shape,
			"data_offsets": []int64{0, int64(len(data))},
		},
	}
	headerBytes, err := json.Marshal(header)
	require.NoError(t, err)

	var out []byte
	lenBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenBuf, uint64(len(headerBytes)))
	out = append(out, lenBuf...)
	out = append(out, headerBytes...)
	out = append(out, data...)
	return out
}

func TestOpenShardsSingleFile(t *testing.T) {
	blob := buildSafetensors(t, "weight", []int{2, 2}, []float32{1, 2, 3, 4})
	fsys := fstest.MapFS{"model.safetensors": &fstest.MapFile{Data: blob}}

	ss, err := OpenShards(fsys)
	require.NoError(t, err)
	require.Equal(t, []string{"weight"}, ss.Names)

	shape, err := ss.Shape("weight")
	require.NoError(t, err)
	require.Equal(t, []int{2, 2}, shape)

	vals, err := ss.ReadFloat32("weight")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, vals)
}

func TestOpenShardsMissingTensor(t *testing.T) {
	blob := buildSafetensors(t, "weight", []int{1}, []float32{1})
	fsys := fstest.MapFS{"model.safetensors": &fstest.MapFile{Data: blob}}

	ss, err := OpenShards(fsys)
	require.NoError(t, err)

	_, err = ss.ReadFloat32("does.not.exist")
	require.Error(t, err)
	var target *MissingTensor
	require.ErrorAs(t, err, &target)
}

func TestOpenShardsShardedIndex(t *testing.T) {
	blobA := buildSafetensors(t, "a", []int{1}, []float32{1})
	blobB := buildSafetensors(t, "b", []int{1}, []float32{2})
	index := map[string]any{
		"weight_map": map[string]string{
			"a": "shard-a.safetensors",
			"b": "shard-b.safetensors",
		},
	}
	indexBytes, err := json.Marshal(index)
	require.NoError(t, err)

	fsys := fstest.MapFS{
		"model.safetensors.index.json": &fstest.MapFile{Data: indexBytes},
		"shard-a.safetensors":          &fstest.MapFile{Data: blobA},
		"shard-b.safetensors":          &fstest.MapFile{Data: blobB},
	}

	ss, err := OpenShards(fsys)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, ss.Names)

	va, err := ss.ReadFloat32("a")
	require.NoError(t, err)
	require.Equal(t, []float32{1}, va)
}
