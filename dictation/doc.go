// Package dictation runs live dictation sessions.
//
// Each session has two goroutines coupled through the session's audio
// buffer. The Ingester reads frames from the client and pushes audio. The
// Recognizer streams that audio to a speech backend, forwards interim and
// final fragments in backend order, and saves the final transcript as a
// clinical note when the stream completes.
//
// The Orchestrator authenticates, admits and registers a connection, runs
// both goroutines, and cleans up exactly once. When the recognizer
// finishes, it cancels the session context so a pending client read
// returns immediately.
package dictation
