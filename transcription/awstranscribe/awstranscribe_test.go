package awstranscribe

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"

	"github.com/kbukum/dictation/transcription"
)

type fakeEventStream struct {
	events chan types.TranscriptResultStream
	err    error

	mu     sync.Mutex
	sent   []string
	closed bool
}

func (f *fakeEventStream) Send(_ context.Context, ev types.AudioStream) error {
	audio, ok := ev.(*types.AudioStreamMemberAudioEvent)
	if !ok {
		return errors.New("unexpected event")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, string(audio.Value.AudioChunk))
	return nil
}

func (f *fakeEventStream) Events() <-chan types.TranscriptResultStream { return f.events }

func (f *fakeEventStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEventStream) Err() error { return f.err }

type codedError struct{ code string }

func (e codedError) Error() string     { return "aws: " + e.code }
func (e codedError) ErrorCode() string { return e.code }

func transcriptEvent(results ...types.Result) types.TranscriptResultStream {
	return &types.TranscriptResultStreamMemberTranscriptEvent{
		Value: types.TranscriptEvent{Transcript: &types.Transcript{Results: results}},
	}
}

func result(text string, partial bool) types.Result {
	return types.Result{IsPartial: partial, Alternatives: []types.Alternative{{Transcript: aws.String(text)}}}
}

func newTestProvider(es *fakeEventStream, audioClosed *int) (*Provider, *transcribestreaming.StartStreamTranscriptionInput) {
	var captured transcribestreaming.StartStreamTranscriptionInput
	p := &Provider{open: func(_ context.Context, in *transcribestreaming.StartStreamTranscriptionInput) (eventStream, func() error, error) {
		captured = *in
		return es, func() error {
			*audioClosed++
			close(es.events)
			return nil
		}, nil
	}}
	return p, &captured
}

func TestStreamFlattensTranscriptEvents(t *testing.T) {
	es := &fakeEventStream{events: make(chan types.TranscriptResultStream, 4)}
	es.events <- &types.UnknownUnionMember{Tag: "heartbeat"}
	es.events <- transcriptEvent(result("hel", true), result("hello", false))
	es.events <- transcriptEvent(result("world", false))

	closed := 0
	p, in := newTestProvider(es, &closed)
	s, err := p.StartStream(context.Background(), transcription.DefaultStreamConfig())
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if in.LanguageCode != types.LanguageCodeEnUs || aws.ToInt32(in.MediaSampleRateHertz) != 16000 || in.MediaEncoding != types.MediaEncodingPcm {
		t.Errorf("unexpected input %+v", in)
	}

	if err := s.Send([]byte("A")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := []transcription.Result{
		{Alternatives: []transcription.Alternative{{Transcript: "hel"}}},
		{IsFinal: true, Alternatives: []transcription.Alternative{{Transcript: "hello"}}},
		{IsFinal: true, Alternatives: []transcription.Alternative{{Transcript: "world"}}},
	}
	for i, w := range want {
		got, err := s.Recv()
		if err != nil {
			t.Fatalf("Recv %d: %v", i, err)
		}
		if got.IsFinal != w.IsFinal || got.Alternatives[0].Transcript != w.Alternatives[0].Transcript {
			t.Errorf("result %d = %+v, want %+v", i, got, w)
		}
	}

	if err := s.CloseSend(); err != nil {
		t.Fatalf("CloseSend: %v", err)
	}
	_ = s.CloseSend()
	if closed != 1 {
		t.Errorf("audio closed %d times, want 1", closed)
	}
	if _, err := s.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("Recv after close = %v, want EOF", err)
	}
	if len(es.sent) != 1 || es.sent[0] != "A" {
		t.Errorf("sent %v", es.sent)
	}
	if !es.closed {
		t.Error("event stream not closed")
	}
}

func TestStreamDropsPartialsWithoutInterim(t *testing.T) {
	es := &fakeEventStream{events: make(chan types.TranscriptResultStream, 2)}
	es.events <- transcriptEvent(result("hel", true), result("hello", false))

	closed := 0
	p, _ := newTestProvider(es, &closed)
	cfg := transcription.DefaultStreamConfig().WithInterimResults(false)
	s, err := p.StartStream(context.Background(), cfg)
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	got, err := s.Recv()
	if err != nil || !got.IsFinal || got.Alternatives[0].Transcript != "hello" {
		t.Fatalf("Recv = %+v, %v", got, err)
	}
}

func TestStreamReportsServiceErrors(t *testing.T) {
	es := &fakeEventStream{events: make(chan types.TranscriptResultStream), err: codedError{code: "BadRequestException"}}
	close(es.events)

	closed := 0
	p, _ := newTestProvider(&fakeEventStream{events: make(chan types.TranscriptResultStream)}, &closed)
	p.open = func(context.Context, *transcribestreaming.StartStreamTranscriptionInput) (eventStream, func() error, error) {
		return es, func() error { return nil }, nil
	}
	s, err := p.StartStream(context.Background(), transcription.DefaultStreamConfig())
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	_, err = s.Recv()
	if err == nil || transcription.Kind(err) != "BadRequestException" {
		t.Fatalf("Recv err = %v (kind %q)", err, transcription.Kind(err))
	}
}

func TestStreamCanceled(t *testing.T) {
	es := &fakeEventStream{events: make(chan types.TranscriptResultStream)}
	closed := 0
	p, _ := newTestProvider(es, &closed)
	ctx, cancel := context.WithCancel(context.Background())
	s, err := p.StartStream(ctx, transcription.DefaultStreamConfig())
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	cancel()
	if _, err := s.Recv(); !errors.Is(err, transcription.ErrCanceled) {
		t.Fatalf("Recv = %v, want ErrCanceled", err)
	}
}

func TestStartStreamRejectsEncoding(t *testing.T) {
	closed := 0
	p, _ := newTestProvider(&fakeEventStream{events: make(chan types.TranscriptResultStream)}, &closed)
	cfg := transcription.DefaultStreamConfig()
	cfg.Encoding = "FLAC"
	if _, err := p.StartStream(context.Background(), cfg); err == nil {
		t.Fatal("expected unsupported encoding error")
	}
}
