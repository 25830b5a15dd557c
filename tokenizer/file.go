// file.go - Tokenizer Sidecar File Format
//
// u32 max_token_len, u32 bos_id, u32 eos_id, then vocab_size repeats of
// (f32 score, u32 length, bytes[length]). Mirrors artifact/header.go's
// binary.LittleEndian reader/writer style.
package tokenizer

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"sort"
)

// Load reads a sidecar tokenizer file. vocabSize must come from the
// paired artifact header, since the sidecar has no count of its own. The
// byte-pair merge table Encode needs is not itself persisted (the sidecar
// stores only each token's bytes and score); Load reconstructs it from
// Tokens and Scores via deriveMerges.
func Load(r io.Reader, vocabSize int, preset string) (*Vocabulary, error) {
	br := bufio.NewReader(r)

	maxTokenLen, err := readU32(br)
	if err != nil {
		return nil, err
	}
	bosID, err := readU32(br)
	if err != nil {
		return nil, err
	}
	eosID, err := readU32(br)
	if err != nil {
		return nil, err
	}

	v := &Vocabulary{
		Tokens: make([][]byte, vocabSize),
		Scores: make([]float32, vocabSize),
		Special: SpecialTokens{
			BOS: toID(bosID), EOS: toID(eosID),
			PAD: NoToken, UNK: NoToken,
			ChatSystem: NoToken, ChatUser: NoToken,
			ChatAssistant: NoToken, ChatEnd: NoToken,
		},
	}

	for i := 0; i < vocabSize; i++ {
		var rawScore uint32
		if err := binary.Read(br, binary.LittleEndian, &rawScore); err != nil {
			return nil, err
		}
		v.Scores[i] = math.Float32frombits(rawScore)

		length, err := readU32(br)
		if err != nil {
			return nil, err
		}
		tok := make([]byte, length)
		if _, err := io.ReadFull(br, tok); err != nil {
			return nil, err
		}
		v.Tokens[i] = tok
	}

	v.Build()
	if int(maxTokenLen) != v.maxTokenLen {
		v.maxTokenLen = int(maxTokenLen)
	}
	v.merges = deriveMerges(v.Tokens, v.Scores)

	preRe, err := compilePreset(preset)
	if err != nil {
		return nil, err
	}
	v.pretokenRe = preRe

	return v, nil
}

// Save writes v out in the sidecar format.
func Save(w io.Writer, v *Vocabulary) error {
	bw := bufio.NewWriter(w)

	if err := writeU32(bw, uint32(v.maxTokenLen)); err != nil {
		return err
	}
	if err := writeU32(bw, fromID(v.Special.BOS)); err != nil {
		return err
	}
	if err := writeU32(bw, fromID(v.Special.EOS)); err != nil {
		return err
	}

	for i, tok := range v.Tokens {
		if err := binary.Write(bw, binary.LittleEndian, math.Float32bits(v.Scores[i])); err != nil {
			return err
		}
		if err := writeU32(bw, uint32(len(tok))); err != nil {
			return err
		}
		if _, err := bw.Write(tok); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeU32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func toID(raw uint32) int32 {
	if raw == math.MaxUint32 {
		return NoToken
	}
	return int32(raw)
}

func fromID(id int32) uint32 {
	if id == NoToken {
		return math.MaxUint32
	}
	return uint32(id)
}

// deriveMerges rebuilds the "left right" -> rank merge table from Tokens
// and Scores alone. The exporter assigns every multi-byte token a score
// of -rank, its position in the source tokenizer's merge list (lower
// rank, closer to zero, is higher priority); deriveMerges recovers rank
// from that score, then walks multi-byte tokens in ascending rank order
// (the order they were originally created in) looking for the first
// split point whose two halves are already known tokens — true by
// construction for a genuine BPE vocabulary, since a merge can only ever
// combine two pieces that already exist.
func deriveMerges(tokens [][]byte, scores []float32) map[string]int {
	type ranked struct {
		id   int
		rank int
	}

	known := make(map[string]bool, len(tokens))
	var multi []ranked
	for id, tok := range tokens {
		if len(tok) <= 1 {
			known[string(tok)] = true
		} else {
			multi = append(multi, ranked{id: id, rank: -int(scores[id])})
		}
	}
	sort.Slice(multi, func(i, j int) bool { return multi[i].rank < multi[j].rank })

	merges := make(map[string]int, len(multi))
	for _, m := range multi {
		tok := tokens[m.id]
		for i := 1; i < len(tok); i++ {
			left, right := string(tok[:i]), string(tok[i:])
			if known[left] && known[right] {
				merges[left+" "+right] = m.rank
				break
			}
		}
		known[string(tok)] = true
	}
	return merges
}
