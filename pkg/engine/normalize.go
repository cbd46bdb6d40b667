package engine

import (
	"encoding/base64"
	"strings"

	"github.com/rhuss/agentbridge/pkg/agent"
	"github.com/rhuss/agentbridge/pkg/api"
)

// Normalize converts request messages into the flat message list an agent
// runtime consumes. Plain string content passes through unchanged. For
// content parts, the last text part becomes the content and every image
// part whose data URI decodes to a non-empty payload is appended to Images.
// Images stays nil when no image survived decoding.
func Normalize(msgs []api.ChatMessage) []agent.Message {
	out := make([]agent.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, normalizeMessage(m))
	}
	return out
}

func normalizeMessage(m api.ChatMessage) agent.Message {
	msg := agent.Message{Role: m.Role}
	if !m.Content.IsParts() {
		msg.Content = m.Content.Text
		return msg
	}

	for _, part := range m.Content.Parts {
		switch part.Type {
		case api.ContentPartText:
			msg.Content = part.Text
		case api.ContentPartImageURL:
			if part.ImageURL == nil {
				continue
			}
			if img := decodeDataURI(part.ImageURL.URL); len(img) > 0 {
				msg.Images = append(msg.Images, img)
			}
		}
	}
	return msg
}

// decodeDataURI decodes the base64 payload following the last comma of a
// data URI. Characters outside the base64 alphabet, such as line breaks or
// spaces from wrapped payloads, are discarded first. Undecodable payloads
// yield nil.
func decodeDataURI(uri string) []byte {
	payload := uri
	if i := strings.LastIndexByte(uri, ','); i >= 0 {
		payload = uri[i+1:]
	}
	payload = strings.Map(base64Rune, payload)
	if payload == "" {
		return nil
	}

	if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return b
	}
	// Unpadded payloads are common in hand-built data URIs.
	if b, err := base64.RawStdEncoding.DecodeString(payload); err == nil {
		return b
	}
	return nil
}

func base64Rune(r rune) rune {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/', r == '=':
		return r
	}
	return -1
}
