package transcription

import (
	"context"

	"github.com/kbukum/dictation/provider"
)

// Provider transcribes a complete audio file.
type Provider interface {
	provider.Provider

	// Transcribe sends audio for transcription and returns the result.
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
}

// StreamingProvider opens bidirectional recognition streams.
type StreamingProvider interface {
	provider.Provider

	// StartStream opens a stream and sends cfg as its first message. The
	// stream lives until ctx is done, CloseSend drains it, or it fails.
	StartStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// Stream is one live recognition session. Send and CloseSend are called from
// one goroutine, Recv from another.
type Stream interface {
	// Send delivers one chunk of raw audio.
	Send(audio []byte) error
	// CloseSend signals that no more audio will follow.
	CloseSend() error
	// Recv returns the next result. io.EOF marks normal completion;
	// ErrDeadlineExceeded and ErrCanceled mark the distinguished failures.
	Recv() (Result, error)
}

// NewRegistry returns a registry of one-shot providers keyed by name.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}

// NewStreamingRegistry returns a registry of streaming providers keyed by name.
func NewStreamingRegistry() *provider.Registry[StreamingProvider] {
	return provider.NewRegistry[StreamingProvider]()
}
