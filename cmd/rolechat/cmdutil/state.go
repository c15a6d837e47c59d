package cmdutil

import (
	"time"

	"github.com/papercomputeco/rolechat/pkg/client"
	"github.com/papercomputeco/rolechat/pkg/dotdir"
)

// RememberConversation records conv as the one "rolechat chat" resumes.
func (e *Env) RememberConversation(conv client.Conversation) error {
	state := &dotdir.State{
		ConversationID: conv.ID,
		CharacterID:    conv.CharacterID,
		UpdatedAt:      time.Now(),
	}
	if conv.Character != nil {
		state.CharacterName = conv.Character.Name
	}
	return dotdir.NewManager().SaveState(state, e.ConfigDir)
}

// LastConversation returns the conversation id recorded by
// RememberConversation, or 0 when there is none.
func (e *Env) LastConversation() int64 {
	state, err := dotdir.NewManager().LoadState(e.ConfigDir)
	if err != nil {
		e.Logger.Warn("could not read session state", "error", err)
		return 0
	}
	if state == nil {
		return 0
	}
	return state.ConversationID
}

// ForgetConversations clears the resume state when it points at one of ids.
func (e *Env) ForgetConversations(ids []int64) {
	ddm := dotdir.NewManager()

	state, err := ddm.LoadState(e.ConfigDir)
	if err != nil || state == nil {
		return
	}

	for _, id := range ids {
		if id == state.ConversationID {
			if err := ddm.ClearState(e.ConfigDir); err != nil {
				e.Logger.Warn("could not clear session state", "error", err)
			}
			return
		}
	}
}
