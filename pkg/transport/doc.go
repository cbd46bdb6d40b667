// Package transport defines the handler interfaces and middleware chain for
// the agentbridge HTTP/SSE transport layer.
//
// The transport layer sits between OpenAI-compatible clients and the stream
// bridge. It deserializes incoming chat completion requests into the types
// defined in pkg/api, dispatches them, and relays the resulting SSE lines
// to the client.
//
// # Handler Interfaces
//
// ChatCompletionCreator handles the create-chat-completion operation. The
// StreamWriter interface abstracts the SSE output so the handler can emit
// preformatted lines without knowing the underlying protocol.
//
// # Middleware
//
// The middleware chain wraps ChatCompletionCreator with cross-cutting
// concerns. Built-in middleware provides panic recovery, request ID
// assignment (X-Request-ID), and structured logging via zap.
//
// # HTTP
//
// The http subpackage serves the interfaces over chi. Streams are flushed
// line by line through http.NewResponseController.
package transport
