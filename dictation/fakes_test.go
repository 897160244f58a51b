package dictation

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/kbukum/dictation/auth"
	"github.com/kbukum/dictation/clinical"
	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/transcription"
	"github.com/kbukum/dictation/transport"
)

// fakeConn replays inbound messages; closing in simulates a disconnect.
type fakeConn struct {
	in chan transport.Message

	mu     sync.Mutex
	frames []map[string]any
	closed bool
	code   int
	reason string
}

func newFakeConn(msgs ...transport.Message) *fakeConn {
	c := &fakeConn{in: make(chan transport.Message, len(msgs)+8)}
	for _, m := range msgs {
		c.in <- m
	}
	return c
}

func (c *fakeConn) Receive(ctx context.Context) (transport.Message, error) {
	select {
	case msg, ok := <-c.in:
		if !ok {
			return transport.Message{}, transport.ErrDisconnected
		}
		return msg, nil
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	}
}

func (c *fakeConn) SendJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed, c.code, c.reason = true, code, reason
	}
	return nil
}

func (c *fakeConn) Frames() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.frames...)
}

// statuses lists the "status" or "type" of every frame sent.
func (c *fakeConn) statuses() []string {
	var out []string
	for _, f := range c.Frames() {
		if s, ok := f["status"].(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, f["type"].(string))
	}
	return out
}

type fakeHandshake struct {
	conn *fakeConn

	mu       sync.Mutex
	rejected bool
	code     int
	reason   string
}

func (h *fakeHandshake) Accept() (transport.Conn, error) { return h.conn, nil }

func (h *fakeHandshake) Reject(code int, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejected, h.code, h.reason = true, code, reason
	return nil
}

// fakeStream emits results, then waits for CloseSend (or ctx) and ends with
// err or io.EOF.
type fakeStream struct {
	ctx     context.Context
	results []transcription.Result
	err     error

	mu        sync.Mutex
	sent      [][]byte
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *fakeStream) Send(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, audio)
	return nil
}

func (s *fakeStream) CloseSend() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) Recv() (transcription.Result, error) {
	s.mu.Lock()
	if len(s.results) > 0 {
		res := s.results[0]
		s.results = s.results[1:]
		s.mu.Unlock()
		return res, nil
	}
	s.mu.Unlock()

	select {
	case <-s.closed:
	case <-s.ctx.Done():
		return transcription.Result{}, transcription.Normalize(s.ctx.Err())
	}
	if s.err != nil {
		return transcription.Result{}, s.err
	}
	return transcription.Result{}, io.EOF
}

func (s *fakeStream) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, b := range s.sent {
		out[i] = string(b)
	}
	return out
}

type fakeProvider struct {
	results  []transcription.Result
	err      error
	startErr error

	mu      sync.Mutex
	streams []*fakeStream
	cfg     transcription.StreamConfig
}

func (p *fakeProvider) Name() string                       { return "fake" }
func (p *fakeProvider) IsAvailable(_ context.Context) bool { return true }

func (p *fakeProvider) StartStream(ctx context.Context, cfg transcription.StreamConfig) (transcription.Stream, error) {
	if p.startErr != nil {
		return nil, p.startErr
	}
	s := &fakeStream{
		ctx:     ctx,
		results: append([]transcription.Result(nil), p.results...),
		err:     p.err,
		closed:  make(chan struct{}),
	}
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.cfg = cfg
	p.mu.Unlock()
	return s, nil
}

func (p *fakeProvider) stream(i int) *fakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streams[i]
}

type fakeNotes struct {
	mu     sync.Mutex
	inputs []clinical.NoteInput
	errs   []error
	panics bool
}

func (n *fakeNotes) CreateNote(_ context.Context, in clinical.NoteInput) (*clinical.ClinicalNote, error) {
	if n.panics {
		panic("database driver exploded")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inputs = append(n.inputs, in)
	if len(n.errs) > 0 {
		err := n.errs[0]
		n.errs = n.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	note := &clinical.ClinicalNote{NoteType: in.NoteType, Content: in.Content, EncounterID: in.EncounterID, AuthorID: in.AuthorID}
	note.ID = 42
	return note, nil
}

func (n *fakeNotes) Inputs() []clinical.NoteInput {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]clinical.NoteInput(nil), n.inputs...)
}

type fakeAuth struct {
	users map[string]auth.Identity
}

func (a fakeAuth) Authenticate(_ context.Context, token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, apperrors.AuthenticationFailed(auth.ReasonAuthRequired)
	}
	id, ok := a.users[token]
	if !ok {
		return auth.Identity{}, apperrors.AuthenticationFailed(auth.ReasonUserNotFound)
	}
	return id, nil
}

func final(text string) transcription.Result {
	return transcription.Result{IsFinal: true, Alternatives: []transcription.Alternative{{Transcript: text}}}
}

func interim(text string) transcription.Result {
	return transcription.Result{Alternatives: []transcription.Alternative{{Transcript: text}}}
}

func binary(s string) transport.Message {
	return transport.Message{Kind: transport.Binary, Data: []byte(s)}
}

func text(s string) transport.Message {
	return transport.Message{Kind: transport.Text, Data: []byte(s)}
}
