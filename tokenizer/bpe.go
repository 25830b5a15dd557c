// bpe.go - Byte-Level BPE Encoding
//
// Maps each byte through the base alphabet, then repeatedly merges the
// lowest-rank (highest-priority) adjacent pair (ties broken by leftmost occurrence)
// until no merge applies. Candidate
// merges are tracked in a priority queue (github.com/emirpasic/gods/v2)
// over a doubly linked list of live token nodes, the usual
// O(n log n) shape for production BPE (c.f. the linear rescan in
// x/imagegen/tokenizer/bpe.go's encodeBPEMerge, which this generalizes).
package tokenizer

import (
	"github.com/emirpasic/gods/v2/queues/priorityqueue"
)

type bpeNode struct {
	tok        []byte
	prev, next int // index into the node slice, -1 if none
	alive      bool
	gen        int // bumped whenever this node is merged into, invalidating stale queue entries
}

type mergeCandidate struct {
	rank int
	pos  int // leftmost byte offset of the left node at enqueue time, for tie-break
	left int // node index
	genL int // left.gen at enqueue time
	genR int // right.gen at enqueue time
}

func mergeLess(a, b mergeCandidate) int {
	switch {
	case a.rank != b.rank:
		return a.rank - b.rank
	case a.pos != b.pos:
		return a.pos - b.pos
	default:
		return 0
	}
}

// encodeChunk runs byte-level BPE merging over one pretokenized chunk and
// appends the resulting token ids to ids.
func (v *Vocabulary) encodeChunk(chunk []byte, ids []int32) ([]int32, error) {
	if len(chunk) == 0 {
		return ids, nil
	}

	if id, ok := v.IDOf(chunk); ok {
		return append(ids, id), nil
	}

	nodes := make([]bpeNode, len(chunk))
	positions := make([]int, len(chunk))
	pos := 0
	for i, b := range chunk {
		id := v.ByteTokenID(b)
		if id == NoToken {
			return nil, &EncodeError{Byte: b}
		}
		nodes[i] = bpeNode{tok: v.Tokens[id], prev: i - 1, next: i + 1, alive: true}
		positions[i] = pos
		pos += 1
	}
	nodes[len(nodes)-1].next = -1

	pq := priorityqueue.New(mergeLess)
	enqueue := func(left int) {
		if left < 0 || nodes[left].next < 0 {
			return
		}
		right := nodes[left].next
		if rank, ok := v.MergeRank(nodes[left].tok, nodes[right].tok); ok {
			pq.Enqueue(mergeCandidate{
				rank: rank,
				pos:  positions[left],
				left: left,
				genL: nodes[left].gen,
				genR: nodes[right].gen,
			})
		}
	}

	for i := range nodes {
		if nodes[i].next >= 0 {
			enqueue(i)
		}
	}

	for {
		cand, ok := pq.Dequeue()
		if !ok {
			break
		}
		left := cand.left
		if !nodes[left].alive || nodes[left].gen != cand.genL || nodes[left].next < 0 {
			continue
		}
		right := nodes[left].next
		if !nodes[right].alive || nodes[right].gen != cand.genR {
			continue
		}

		merged := append(append([]byte{}, nodes[left].tok...), nodes[right].tok...)
		nodes[left].tok = merged
		nodes[left].gen++
		nodes[left].next = nodes[right].next
		if nodes[right].next >= 0 {
			nodes[nodes[right].next].prev = left
		}
		nodes[right].alive = false

		enqueue(left)
		if nodes[left].prev >= 0 {
			enqueue(nodes[left].prev)
		}
	}

	for i := range nodes {
		if !nodes[i].alive {
			continue
		}
		if id, ok := v.IDOf(nodes[i].tok); ok {
			ids = append(ids, id)
			continue
		}
		// The merged bytes are not themselves a vocabulary token (only
		// possible when the merge table names a pair whose concatenation
		// is missing from Tokens); fall back to emitting the underlying
		// bytes individually.
		for _, b := range nodes[i].tok {
			ids = append(ids, v.ByteTokenID(b))
		}
	}

	return ids, nil
}

// Encode pretokenizes text, BPE-merges each chunk, and optionally
// prepends BOS and chat framing.
func (v *Vocabulary) Encode(text string, chatFraming ChatFraming) ([]int32, error) {
	var ids []int32

	if chatFraming.Enabled {
		ids = v.appendChatPrefix(ids, chatFraming)
	} else if v.Special.BOS != NoToken {
		ids = append(ids, v.Special.BOS)
	}

	chunks := v.pretokenRe.split(text)
	for _, chunk := range chunks {
		var err error
		ids, err = v.encodeChunk([]byte(chunk), ids)
		if err != nil {
			return nil, err
		}
	}

	if chatFraming.Enabled {
		ids = v.appendChatSuffix(ids, chatFraming)
	}

	return ids, nil
}
