// chat.go - Chat Template Framing
//
// Adds the `<|im_start|>`/`<|im_end|>` framing Qwen3 checkpoints expect
// around a turn, grounded on x/imagegen/models/qwen3/prompt.go's
// buildPrompt. Framing is opt-in: plain completion callers never pay for
// it.
package tokenizer

// ChatFraming selects chat-turn framing for Encode. Role is the raw role
// string ("system", "user", "assistant"); the matching special-token id
// is looked up from Vocabulary.Special.
type ChatFraming struct {
	Enabled bool
	Role    string
}

func (v *Vocabulary) roleStartToken(role string) int32 {
	switch role {
	case "system":
		return v.Special.ChatSystem
	case "assistant":
		return v.Special.ChatAssistant
	default:
		return v.Special.ChatUser
	}
}

func (v *Vocabulary) appendChatPrefix(ids []int32, f ChatFraming) []int32 {
	if v.Special.BOS != NoToken {
		ids = append(ids, v.Special.BOS)
	}
	if start := v.roleStartToken(f.Role); start != NoToken {
		ids = append(ids, start)
	}
	return ids
}

func (v *Vocabulary) appendChatSuffix(ids []int32, f ChatFraming) []int32 {
	if v.Special.ChatEnd != NoToken {
		ids = append(ids, v.Special.ChatEnd)
	}
	return ids
}
