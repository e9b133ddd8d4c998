// Package notifier delivers alert text to one configured sink.
//
// # Sinks
//
// A Sink posts a single text. Three exist: a chat sink over a transport
// adapter (Telegram), a Discord webhook sink, and a log sink that only writes
// the text to the logger, which suits dry runs.
//
// # History
//
// Service wraps a sink and keeps a small in-memory history of sent texts and
// delivery counters for the status endpoint.
package notifier
