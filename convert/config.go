// config.go - config.json Parsing
//
// Mirrors convert_model.go's ModelParameters/LoadModelMetadata shape,
// narrowed to the single architecture this engine runs: Qwen3ForCausalLM.
package convert

import (
	"encoding/json"
	"io/fs"

	"github.com/PieBru/pico-qwen/artifact"
)

// modelParameters is the subset of config.json fields export needs to
// populate an artifact.Header.
type modelParameters struct {
	Architectures        []string `json:"architectures"`
	VocabSize            uint32   `json:"vocab_size"`
	HiddenSize           uint32   `json:"hidden_size"`
	IntermediateSize     uint32   `json:"intermediate_size"`
	NumHiddenLayers      uint32   `json:"num_hidden_layers"`
	NumAttentionHeads    uint32   `json:"num_attention_heads"`
	NumKeyValueHeads     uint32   `json:"num_key_value_heads"`
	MaxPositionEmbedding uint32   `json:"max_position_embeddings"`
	RopeTheta            float32  `json:"rope_theta"`
	TieWordEmbeddings    bool     `json:"tie_word_embeddings"`
}

// LoadConfig reads config.json from fsys and derives an artifact.Header.
// groupSize is the caller's chosen quantization group size (not present
// in config.json).
func LoadConfig(fsys fs.FS, groupSize uint32) (artifact.Header, error) {
	bts, err := fs.ReadFile(fsys, "config.json")
	if err != nil {
		return artifact.Header{}, err
	}

	var p modelParameters
	if err := json.Unmarshal(bts, &p); err != nil {
		return artifact.Header{}, err
	}

	if len(p.Architectures) != 1 || p.Architectures[0] != "Qwen3ForCausalLM" {
		arch := "<missing>"
		if len(p.Architectures) > 0 {
			arch = p.Architectures[0]
		}
		return artifact.Header{}, &UnsupportedArchitecture{Architecture: arch}
	}

	if p.NumKeyValueHeads == 0 {
		p.NumKeyValueHeads = p.NumAttentionHeads
	}

	h := artifact.Header{
		VocabSize:        p.VocabSize,
		Dim:              p.HiddenSize,
		HiddenDim:        p.IntermediateSize,
		NLayers:          p.NumHiddenLayers,
		NHeads:           p.NumAttentionHeads,
		NKVHeads:         p.NumKeyValueHeads,
		MaxSeqLen:        p.MaxPositionEmbedding,
		RopeTheta:        p.RopeTheta,
		GroupSize:        groupSize,
		SharedClassifier: p.TieWordEmbeddings,
	}

	return h, h.Validate()
}
