// Package resilience holds the fault-tolerance helpers used around the
// dictation service's external calls.
//
//   - Retry wraps clinical note persistence and database connects.
//   - Bulkhead caps concurrent dictation sessions and uploads.
//   - CircuitBreaker fails one-shot transcription fast while the ASR backend is down.
package resilience
