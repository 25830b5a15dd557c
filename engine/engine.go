// Package engine - Facade
//
// Engine is the public entry point: Load opens the memory-mapped
// artifact and tokenizer sidecar once, then any number of independent
// Sessions can be created against the shared, read-only Weights and
// Vocabulary. Each Session gets its own google/uuid correlation id
// attached to every slog line for that session's generation, mirroring
// how ollama's server package tags request logs with a request id.
package engine

import (
	"log/slog"
	"os"

	"github.com/PieBru/pico-qwen/artifact"
	"github.com/PieBru/pico-qwen/generate"
	"github.com/PieBru/pico-qwen/model"
	"github.com/PieBru/pico-qwen/tokenizer"
	"github.com/google/uuid"
)

// tokenizerPreset is the only pretokenizer pattern this engine ever
// compiles at load time, since scope is the Qwen3 family exclusively;
// the preset itself is not persisted in the sidecar file.
const tokenizerPreset = "qwen"

// Engine holds the shared, read-only state loaded from one artifact +
// tokenizer pair: the memory mapping, the quantized weights, and
// the vocabulary. Safe for concurrent use by any number of Sessions.
type Engine struct {
	mapping *artifact.Mapping
	weights *model.Weights
	vocab   *tokenizer.Vocabulary
}

// Load opens the memory-mapped artifact, validates its header, and loads
// the paired tokenizer sidecar file.
func Load(artifactPath, tokenizerPath string) (*Engine, error) {
	mapping, err := artifact.Map(artifactPath)
	if err != nil {
		return nil, err
	}

	weights, err := model.Load(mapping)
	if err != nil {
		mapping.Close()
		return nil, err
	}

	tokFile, err := os.Open(tokenizerPath)
	if err != nil {
		mapping.Close()
		return nil, err
	}
	defer tokFile.Close()

	vocab, err := tokenizer.Load(tokFile, int(weights.Header.VocabSize), tokenizerPreset)
	if err != nil {
		mapping.Close()
		return nil, err
	}

	slog.Info("engine loaded", "artifact", artifactPath, "tokenizer", tokenizerPath,
		"vocab_size", weights.Header.VocabSize, "n_layers", weights.Header.NLayers)

	return &Engine{mapping: mapping, weights: weights, vocab: vocab}, nil
}

// Close releases the underlying memory mapping. Every Session created
// from this Engine must be dropped first.
func (e *Engine) Close() error {
	return e.mapping.Close()
}

// Config returns the loaded artifact's model configuration.
func (e *Engine) Config() artifact.Header {
	return e.weights.Header
}

// NewSession builds a new, independently stateful generation session
// sharing this Engine's read-only Weights and Vocabulary.
func (e *Engine) NewSession(params generate.SessionParams) *Session {
	id := uuid.NewString()
	slog.Info("session started", "session_id", id,
		"temperature", params.Temperature, "max_new_tokens", params.MaxNewTokens)
	return &Session{
		id:  id,
		gen: generate.NewGenerator(e.weights, e.vocab, params),
	}
}

// Session is one independent generation context.
type Session struct {
	id  string
	gen *generate.Generator
}

// Push encodes prompt and returns a pull-based iterator over
// GenerationEvent, logging a line per push under this session's
// correlation id.
func (s *Session) Push(prompt string) (*generate.Iterator, error) {
	it, err := s.gen.Push(prompt)
	if err != nil {
		slog.Warn("push failed", "session_id", s.id, "error", err)
		return nil, err
	}
	slog.Info("push accepted", "session_id", s.id, "prompt_len", len(prompt))
	return it, nil
}
