package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrEndOfStream is returned by Pop once the end-of-audio marker is reached.
	ErrEndOfStream = errors.New("session: end of audio stream")
	// ErrIdleTimeout is returned by Pop when no audio arrived within the idle window.
	ErrIdleTimeout = errors.New("session: audio idle timeout")
	// ErrEnded is returned by Push after End.
	ErrEnded = errors.New("session: audio buffer ended")
)

// DefaultBufferCapacity is the number of chunks an AudioBuffer holds before
// Push blocks.
const DefaultBufferCapacity = 256

// AudioBuffer is a bounded FIFO of audio chunks for one producer and one
// consumer, terminated by an end marker that is always consumed last.
type AudioBuffer struct {
	chunks  chan []byte
	ended   chan struct{}
	endOnce sync.Once
}

// NewAudioBuffer creates a buffer holding up to capacity chunks.
func NewAudioBuffer(capacity int) *AudioBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &AudioBuffer{
		chunks: make(chan []byte, capacity),
		ended:  make(chan struct{}),
	}
}

// Push enqueues a chunk, blocking while the buffer is full.
func (b *AudioBuffer) Push(ctx context.Context, chunk []byte) error {
	select {
	case <-b.ended:
		return ErrEnded
	default:
	}
	select {
	case b.chunks <- chunk:
		return nil
	case <-b.ended:
		return ErrEnded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// End marks the end of audio. It never blocks and only the first call has
// an effect.
func (b *AudioBuffer) End() {
	b.endOnce.Do(func() { close(b.ended) })
}

// Ended reports whether End has been called.
func (b *AudioBuffer) Ended() bool {
	select {
	case <-b.ended:
		return true
	default:
		return false
	}
}

// Pop returns the next chunk, waiting at most idle. Chunks enqueued before
// End are returned before ErrEndOfStream.
func (b *AudioBuffer) Pop(ctx context.Context, idle time.Duration) ([]byte, error) {
	select {
	case chunk := <-b.chunks:
		return chunk, nil
	default:
	}

	timer := time.NewTimer(idle)
	defer timer.Stop()

	select {
	case chunk := <-b.chunks:
		return chunk, nil
	case <-b.ended:
		select {
		case chunk := <-b.chunks:
			return chunk, nil
		default:
			return nil, ErrEndOfStream
		}
	case <-timer.C:
		return nil, ErrIdleTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of queued chunks.
func (b *AudioBuffer) Len() int {
	return len(b.chunks)
}
