// Package agent defines the contract between the gateway and an agent
// runtime. A runtime accepts a normalized conversation and answers with a
// Source of chat-history snapshots; the newest message of each snapshot is
// its last chat_history entry. Driver packages (httpagent, openaiagent)
// handle their own backend protocol internally.
package agent
