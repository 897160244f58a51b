// Package session holds the per-connection state of a dictation session and
// the registry of live connections.
//
// A State moves CONNECTING -> ACTIVE -> DRAINING -> CLOSED. Its AudioBuffer
// couples the ingestion and recognition goroutines: the ingester pushes
// chunks, the recognizer pops them, and End marks the end of audio exactly
// once so the recognizer's read loop always terminates.
//
// The Registry is injected into whoever needs to send to a session. Sends to
// a session that is gone are logged and skipped.
package session
