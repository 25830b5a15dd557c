package generate

import "fmt"

// PromptTooLong is returned by Push when the encoded prompt (plus any
// chat framing) would not fit within context_length. This engine rejects
// rather than silently truncating.
type PromptTooLong struct {
	TokenCount    int
	ContextLength int
}

func (e *PromptTooLong) Error() string {
	return fmt.Sprintf("generate: prompt has %d tokens, exceeds context_length %d", e.TokenCount, e.ContextLength)
}
