// Package engine bridges OpenAI chat completion requests to an agent
// runtime. The Engine normalizes the inbound messages, starts an agent run,
// primes the resulting snapshot stream, and relays each snapshot to the
// client as a chat.completion.chunk SSE line.
//
// The pieces are usable on their own: Normalize flattens request messages,
// Translator turns a snapshot into a chunk, Encode frames a chunk for SSE,
// and Bridge drives a Source through the priming and streaming phases.
package engine
