package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Phase is the lifecycle position of a session.
type Phase int32

const (
	PhaseConnecting Phase = iota
	PhaseActive
	PhaseDraining
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "CONNECTING"
	case PhaseActive:
		return "ACTIVE"
	case PhaseDraining:
		return "DRAINING"
	case PhaseClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ErrContextAttached is returned when a note context is attached twice.
var ErrContextAttached = errors.New("session: note context already attached")

// NoteContext is what a finished session needs to store its note.
type NoteContext struct {
	EncounterID int64
	AuthorID    int64
	NoteType    string
}

// Complete reports whether all three fields are present.
func (c NoteContext) Complete() bool {
	return c.EncounterID > 0 && c.AuthorID > 0 && c.NoteType != ""
}

// Transcript accumulates final fragments. Each fragment is trimmed and
// followed by one space.
type Transcript struct {
	mu sync.Mutex
	b  strings.Builder
}

// AppendFinal adds a final fragment.
func (t *Transcript) AppendFinal(fragment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b.WriteString(strings.TrimSpace(fragment))
	t.b.WriteByte(' ')
}

// Raw returns the accumulated text including trailing space.
func (t *Transcript) Raw() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.b.String()
}

// Text returns the trimmed transcript.
func (t *Transcript) Text() string {
	return strings.TrimSpace(t.Raw())
}

// State is the mutable record of one live session.
type State struct {
	ID        string
	Audio     *AudioBuffer
	StartedAt time.Time

	transcript Transcript
	phase      atomic.Int32
	active     atomic.Bool

	ctxOnce sync.Once
	note    NoteContext

	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewState creates a session in PhaseConnecting. Its context derives from
// parent and is canceled by Cancel or Close.
func NewState(parent context.Context, id string, bufferCapacity int) *State {
	ctx, cancel := context.WithCancelCause(parent)
	s := &State{
		ID:        id,
		Audio:     NewAudioBuffer(bufferCapacity),
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.active.Store(true)
	return s
}

// Attach stores the note context and moves the session to PhaseActive.
func (s *State) Attach(nc NoteContext) error {
	attached := false
	s.ctxOnce.Do(func() {
		s.note = nc
		attached = true
	})
	if !attached {
		return ErrContextAttached
	}
	s.phase.CompareAndSwap(int32(PhaseConnecting), int32(PhaseActive))
	return nil
}

// Note returns the attached note context.
func (s *State) Note() NoteContext {
	return s.note
}

// Transcript returns the session's transcript accumulator.
func (s *State) Transcript() *Transcript {
	return &s.transcript
}

// Phase returns the current lifecycle phase.
func (s *State) Phase() Phase {
	return Phase(s.phase.Load())
}

// IsActive reports whether the session should keep running.
func (s *State) IsActive() bool {
	return s.active.Load() && s.ctx.Err() == nil
}

// Deactivate flips the session inactive, moves it to PhaseDraining and ends
// the audio buffer. Safe to call any number of times from any goroutine.
func (s *State) Deactivate() {
	s.active.Store(false)
	for {
		p := s.phase.Load()
		if p >= int32(PhaseDraining) || s.phase.CompareAndSwap(p, int32(PhaseDraining)) {
			break
		}
	}
	s.Audio.End()
}

// Context is canceled when the session is torn down.
func (s *State) Context() context.Context {
	return s.ctx
}

// Cancel deactivates the session and cancels its context with cause.
func (s *State) Cancel(cause error) {
	s.Deactivate()
	s.cancel(cause)
}

// Close moves the session to PhaseClosed and releases its context.
func (s *State) Close() {
	s.Deactivate()
	s.phase.Store(int32(PhaseClosed))
	s.cancel(context.Canceled)
}
