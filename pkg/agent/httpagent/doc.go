// Package httpagent drives a remote agent runtime over HTTP. A run is a
// POST of the normalized conversation; the runtime answers with one JSON
// snapshot per line, either as NDJSON or as SSE data lines.
package httpagent
