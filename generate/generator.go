// generator.go - Prefill-then-Decode Loop
package generate

import (
	"github.com/PieBru/pico-qwen/model"
	"github.com/PieBru/pico-qwen/sample"
	"github.com/PieBru/pico-qwen/tokenizer"
)

// Generator owns one Session's worth of generation state: the model
// session (weights + KV cache + scratch), the vocabulary it encodes and
// decodes against, and the PRNG driving sampling.
type Generator struct {
	session *model.Session
	vocab   *tokenizer.Vocabulary
	params  SessionParams
	rng     *sample.RNG

	maxSeqLen int
}

// NewGenerator builds a Generator bound to a freshly allocated
// model.Session sized for params.ContextLength.
func NewGenerator(w *model.Weights, vocab *tokenizer.Vocabulary, params SessionParams) *Generator {
	maxSeqLen := int(params.ContextLength)
	if maxSeqLen == 0 || maxSeqLen > int(w.Header.MaxSeqLen) {
		maxSeqLen = int(w.Header.MaxSeqLen)
	}
	return &Generator{
		session:   model.NewSession(w, maxSeqLen),
		vocab:     vocab,
		params:    params,
		rng:       sample.NewRNG(params.Seed),
		maxSeqLen: maxSeqLen,
	}
}

// samplerParams adapts SessionParams' sampling fields to sample.Params.
func (g *Generator) samplerParams() sample.Params {
	return sample.Params{
		Temperature: g.params.Temperature,
		TopK:        int(g.params.TopK),
		TopP:        g.params.TopP,
	}
}

func (g *Generator) chatFraming() tokenizer.ChatFraming {
	if g.params.ChatFraming != ChatFramingChat {
		return tokenizer.ChatFraming{}
	}
	role := "user"
	if g.params.System != "" {
		role = "system"
	}
	return tokenizer.ChatFraming{Enabled: true, Role: role}
}

// Push resets the session's KV cache and runs a fresh prefill pass over
// prompt, returning an Iterator positioned to yield the first decode
// event on its next Next call. Each call to Push starts from position 0
// with an empty KV cache; the sampler's PRNG is not reseeded, so it
// continues from the state a prior Push left it in.
func (g *Generator) Push(prompt string) (*Iterator, error) {
	g.session.Reset()

	tokens, err := g.vocab.Encode(prompt, g.chatFraming())
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		tokens = []int32{g.vocab.Special.BOS}
	}
	if len(tokens) >= g.maxSeqLen {
		return nil, &PromptTooLong{TokenCount: len(tokens), ContextLength: g.maxSeqLen}
	}

	var logits []float32
	for i, tok := range tokens {
		logits = g.session.Step(int(tok), i)
	}

	return &Iterator{
		g:          g,
		dec:        tokenizer.NewDecoder(g.vocab),
		nextLogits: logits,
		pos:        len(tokens) - 1,
		generated:  0,
	}, nil
}

// Iterator is the pull-based cursor over a generation: consumers call
// Next repeatedly until it reports an End event.
type Iterator struct {
	g          *Generator
	dec        *tokenizer.Decoder
	nextLogits []float32
	pos        int
	generated  uint32
	done       bool
}

// Next advances the generator by one step and returns the resulting
// event. Calling Next again after an End event is a programmer error;
// the iterator does not re-arm itself.
func (it *Iterator) Next() GenerationEvent {
	if it.done {
		return GenerationEvent{IsEnd: true, EndReason: ReasonMaxNew}
	}

	g := it.g

	if it.generated >= g.params.MaxNewTokens {
		it.done = true
		text, err := it.dec.Flush()
		return GenerationEvent{IsEnd: true, EndReason: ReasonMaxNew, TextDelta: text, DecodeErr: err}
	}
	if it.pos+1 >= it.g.maxSeqLen {
		it.done = true
		text, err := it.dec.Flush()
		return GenerationEvent{IsEnd: true, EndReason: ReasonLengthLimit, TextDelta: text, DecodeErr: err}
	}

	tok, err := sample.Sample(it.nextLogits, g.samplerParams(), g.rng)
	if err != nil {
		it.done = true
		return GenerationEvent{IsEnd: true, EndReason: ReasonLengthLimit, DecodeErr: err}
	}

	if g.params.StopOnEOS && int32(tok) == g.vocab.Special.EOS {
		it.done = true
		text, flushErr := it.dec.Flush()
		return GenerationEvent{IsEnd: true, EndReason: ReasonEOS, TextDelta: text, DecodeErr: flushErr}
	}

	delta, decErr := it.dec.Push(int32(tok))
	it.generated++
	it.pos++
	it.nextLogits = g.session.Step(tok, it.pos)

	return GenerationEvent{TokenID: int32(tok), TextDelta: delta, DecodeErr: decErr}
}
