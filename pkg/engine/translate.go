package engine

import (
	"time"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/api"
)

// Translator converts agent snapshots into chat completion chunks for one
// model.
type Translator struct {
	model string
	now   func() time.Time
}

// NewTranslator creates a Translator that reports the given model.
func NewTranslator(model string) *Translator {
	return &Translator{model: model, now: time.Now}
}

// Translate builds the chunk for snap. Content and role come from the newest
// chat history entry; created is taken from the clock at each call.
func (t *Translator) Translate(snap agent.Snapshot, streamID string) (*api.ChatCompletionChunk, error) {
	latest, err := snap.Latest()
	if err != nil {
		return nil, err
	}
	return api.NewChatCompletionChunk(streamID, t.model, t.now().Unix(), api.MessageRole(latest.Role), latest.Content), nil
}
