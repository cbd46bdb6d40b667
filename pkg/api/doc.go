// Package api defines the wire types of the agentbridge gateway.
//
// Inbound requests follow the OpenAI chat completion format: a list of
// messages whose content is either a string or a list of text and
// image_url parts. Outbound data is a stream of chat.completion.chunk
// objects framed as Server-Sent Events.
//
// Core types:
//   - [ChatCompletionRequest]: client request with messages and model
//   - [MessageContent]: text or multi-part content, resolved at decode time
//   - [ChatCompletionChunk]: one streamed chunk
//   - [APIError]: structured error with type, code, param, and message
//   - [StreamPhase]: lifecycle phase of a stream bridge
//
// The package performs no I/O.
package api
