package engine

import (
	"encoding/json"
	"fmt"

	"github.com/rhuss/agentbridge/pkg/api"
)

// Event is one encoded SSE line. Done asks the bridge to follow the line
// with the [DONE] terminator.
type Event struct {
	Text string
	Done bool
}

// Encode frames chunk as a "data: <json>\n\n" SSE line.
func Encode(chunk *api.ChatCompletionChunk) (Event, error) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return Event{}, fmt.Errorf("encoding chunk: %w", err)
	}
	return Event{Text: api.DataPrefix + string(data) + "\n\n"}, nil
}
