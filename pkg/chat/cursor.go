package chat

import "strings"

// EffectKind describes what applying an event did to the history.
type EffectKind int

const (
	// EffectIgnored means the event changed nothing.
	EffectIgnored EffectKind = iota

	// EffectUserReconciled means a provisional user entry was replaced by
	// the server's record.
	EffectUserReconciled

	// EffectUserUnmatched means no provisional user entry matched.
	EffectUserUnmatched

	// EffectAssistantAppended means a new assistant entry was appended.
	EffectAssistantAppended

	// EffectAssistantReplaced means the pending assistant entry was
	// replaced by the latest event.
	EffectAssistantReplaced

	// EffectAssistantDeferred means a blank first fragment was skipped so no
	// empty entry appears.
	EffectAssistantDeferred
)

func (k EffectKind) String() string {
	switch k {
	case EffectUserReconciled:
		return "user_reconciled"
	case EffectUserUnmatched:
		return "user_unmatched"
	case EffectAssistantAppended:
		return "assistant_appended"
	case EffectAssistantReplaced:
		return "assistant_replaced"
	case EffectAssistantDeferred:
		return "assistant_deferred"
	default:
		return "ignored"
	}
}

// Effect is the result of applying one event.
type Effect struct {
	Kind EffectKind

	// Index is the position of the entry that was written, -1 if none.
	Index int

	// FirstAssistant is set on the first assistant event of the stream.
	FirstAssistant bool
}

// Cursor is the reconciliation state of a single send. It is created when
// the send begins and dropped when the stream ends; it is never shared
// between sends.
type Cursor struct {
	content       string
	correlationID string

	pendingAssistant int
	sawAssistant     bool
}

// NewCursor returns a Cursor for a send of content whose placeholder carries
// correlationID.
func NewCursor(content, correlationID string) *Cursor {
	return &Cursor{
		content:          content,
		correlationID:    correlationID,
		pendingAssistant: -1,
	}
}

// PendingAssistant returns the index of the assistant entry built by this
// stream, or -1 before one exists.
func (c *Cursor) PendingAssistant() int {
	return c.pendingAssistant
}

// Apply merges ev into list and returns the updated list. Entries are
// replaced in place or appended, never removed. Events with a role other
// than user or assistant return *UnsupportedEventError and leave list
// untouched.
func (c *Cursor) Apply(list []Message, ev StreamEvent) ([]Message, Effect, error) {
	switch ev.Role {
	case RoleUser:
		return c.applyUser(list, ev)
	case RoleAssistant:
		return c.applyAssistant(list, ev)
	default:
		return list, Effect{Kind: EffectIgnored, Index: -1}, &UnsupportedEventError{Role: ev.Role}
	}
}

func (c *Cursor) applyUser(list []Message, ev StreamEvent) ([]Message, Effect, error) {
	idx := c.findPlaceholder(list, ev)
	if idx < 0 {
		return list, Effect{Kind: EffectUserUnmatched, Index: -1}, nil
	}

	list[idx] = ev.Message()
	return list, Effect{Kind: EffectUserReconciled, Index: idx}, nil
}

// findPlaceholder locates the provisional user entry an event confirms.
// An echoed client token is authoritative. Without one, the placeholder of
// this send wins over any other provisional entry with the same content,
// searching most recent first.
func (c *Cursor) findPlaceholder(list []Message, ev StreamEvent) int {
	isCandidate := func(m Message) bool {
		return m.Provisional && m.Role == RoleUser
	}

	if ev.ClientID != "" {
		for i := len(list) - 1; i >= 0; i-- {
			if isCandidate(list[i]) && list[i].CorrelationID == ev.ClientID {
				return i
			}
		}
		return -1
	}

	fallback := -1
	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		if !isCandidate(m) || m.Content != c.content {
			continue
		}
		if c.correlationID != "" && m.CorrelationID == c.correlationID {
			return i
		}
		if fallback < 0 {
			fallback = i
		}
	}

	return fallback
}

func (c *Cursor) applyAssistant(list []Message, ev StreamEvent) ([]Message, Effect, error) {
	eff := Effect{Index: -1}
	if !c.sawAssistant {
		c.sawAssistant = true
		eff.FirstAssistant = true
	}

	if c.pendingAssistant < 0 || c.pendingAssistant >= len(list) {
		if strings.TrimSpace(ev.Content) == "" {
			eff.Kind = EffectAssistantDeferred
			return list, eff, nil
		}

		list = append(list, ev.Message())
		c.pendingAssistant = len(list) - 1

		eff.Kind = EffectAssistantAppended
		eff.Index = c.pendingAssistant
		return list, eff, nil
	}

	// Each event carries the whole reply so far: the latest one wins.
	list[c.pendingAssistant] = ev.Message()

	eff.Kind = EffectAssistantReplaced
	eff.Index = c.pendingAssistant
	return list, eff, nil
}
