// safetensors.go - Safetensors Shard Reading
//
// A safetensors file is an 8-byte little-endian header length, a JSON
// header mapping tensor name to {dtype, shape, data_offsets}, then the
// raw tensor bytes. Sharded checkpoints add a model.safetensors.index.json
// mapping tensor name to shard filename. Grounded on convert_model.go's
// fs.FS-based loading style; dtype upcasting uses x448/float16 and
// d4l3k/go-bfloat16.
package convert

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"sort"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

type tensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// ShardSet indexes every tensor across one or more safetensors shards so
// callers can read tensors by name without caring how they're split.
type ShardSet struct {
	fsys  fs.FS
	index map[string]shardEntry
	Names []string // sorted, stable traversal order
}

type shardEntry struct {
	file string
	info tensorInfo
}

// OpenShards discovers and indexes every tensor in fsys, following
// model.safetensors.index.json when present, or a single
// model.safetensors file otherwise.
func OpenShards(fsys fs.FS) (*ShardSet, error) {
	files, err := shardFiles(fsys)
	if err != nil {
		return nil, err
	}

	ss := &ShardSet{fsys: fsys, index: make(map[string]shardEntry)}
	for _, file := range files {
		header, err := readShardHeader(fsys, file)
		if err != nil {
			return nil, err
		}
		for name, info := range header {
			if name == "__metadata__" {
				continue
			}
			ss.index[name] = shardEntry{file: file, info: info}
		}
	}

	ss.Names = make([]string, 0, len(ss.index))
	for name := range ss.index {
		ss.Names = append(ss.Names, name)
	}
	sort.Strings(ss.Names)

	return ss, nil
}

func shardFiles(fsys fs.FS) ([]string, error) {
	idxBytes, err := fs.ReadFile(fsys, "model.safetensors.index.json")
	if err != nil {
		if _, statErr := fs.Stat(fsys, "model.safetensors"); statErr == nil {
			return []string{"model.safetensors"}, nil
		}
		return nil, err
	}

	var idx struct {
		WeightMap map[string]string `json:"weight_map"`
	}
	if err := json.Unmarshal(idxBytes, &idx); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []string
	for _, f := range idx.WeightMap {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files, nil
}

func readShardHeader(fsys fs.FS, file string) (map[string]tensorInfo, error) {
	f, err := fsys.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lenBuf [8]byte
	if _, err := f.Read(lenBuf[:]); err != nil {
		return nil, err
	}
	headerLen := binary.LittleEndian.Uint64(lenBuf[:])

	headerBytes := make([]byte, headerLen)
	if _, err := readFull(f, headerBytes); err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, err
	}

	header := make(map[string]tensorInfo, len(raw))
	for name, msg := range raw {
		if name == "__metadata__" {
			continue
		}
		var info tensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, err
		}
		header[name] = info
	}
	return header, nil
}

func readFull(f fs.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Shape returns a tensor's shape without reading its data.
func (ss *ShardSet) Shape(name string) ([]int, error) {
	entry, ok := ss.index[name]
	if !ok {
		return nil, &MissingTensor{Name: name}
	}
	return entry.info.Shape, nil
}

// ReadFloat32 reads and upcasts a tensor to float32, regardless of its
// on-disk dtype.
func (ss *ShardSet) ReadFloat32(name string) ([]float32, error) {
	entry, ok := ss.index[name]
	if !ok {
		return nil, &MissingTensor{Name: name}
	}

	f, err := ss.fsys.Open(entry.file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lenBuf [8]byte
	if _, err := f.Read(lenBuf[:]); err != nil {
		return nil, err
	}
	headerLen := int64(binary.LittleEndian.Uint64(lenBuf[:]))
	dataStart := 8 + headerLen

	start, end := entry.info.DataOffsets[0], entry.info.DataOffsets[1]
	raw := make([]byte, end-start)
	if seeker, ok := f.(interface{ Seek(int64, int) (int64, error) }); ok {
		if _, err := seeker.Seek(dataStart+start, 0); err != nil {
			return nil, err
		}
		if _, err := readFull(f, raw); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("convert: file %q does not support seeking", entry.file)
	}

	return upcast(entry.info.DType, raw, name)
}

func upcast(dtype string, raw []byte, name string) ([]float32, error) {
	switch dtype {
	case "F32":
		out := make([]float32, len(raw)/4)
		for i := range out {
			out[i] = float32FromLE(raw[i*4 : i*4+4])
		}
		return out, nil
	case "F16":
		out := make([]float32, len(raw)/2)
		for i := range out {
			bits := binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
			out[i] = float16.Frombits(bits).Float32()
		}
		return out, nil
	case "BF16":
		return bfloat16.DecodeFloat32(raw), nil
	default:
		return nil, &UnsupportedDType{Name: name, DType: dtype}
	}
}

func float32FromLE(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
