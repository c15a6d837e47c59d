package api

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/rolechat/pkg/chat"
	"github.com/papercomputeco/rolechat/pkg/client"
)

// Responder produces the assistant's reply to the latest user message as a
// sequence of fragments. Fragments are deltas; the server accumulates them.
type Responder interface {
	Reply(character client.Character, history []chat.Message) []string
}

// EchoResponder answers in character by quoting the user back, one word per
// fragment.
type EchoResponder struct{}

func (EchoResponder) Reply(character client.Character, history []chat.Message) []string {
	last := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleUser {
			last = history[i].Content
			break
		}
	}

	reply := fmt.Sprintf("%s considers your words: %q", character.Name, last)

	words := strings.SplitAfter(reply, " ")
	fragments := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			fragments = append(fragments, w)
		}
	}

	return fragments
}
