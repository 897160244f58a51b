// Package api registers the dictation service routes on a Gin router: the
// dictation WebSocket, the one-shot upload endpoint, encounter note listing
// and session diagnostics.
package api
