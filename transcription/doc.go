// Package transcription defines the speech recognition contracts used by the
// dictation service: Provider for one-shot files and StreamingProvider for
// live sessions.
//
// Backends:
//
//   - transcription/google: Cloud Speech-to-Text, streaming and one-shot
//   - transcription/awstranscribe: Amazon Transcribe streaming
//   - transcription/whisper: faster-whisper HTTP sidecar, one-shot
//
// Stream.Recv reports normal completion with io.EOF. Backends translate their
// deadline and cancellation signals with Normalize so callers can match
// ErrDeadlineExceeded and ErrCanceled.
package transcription
