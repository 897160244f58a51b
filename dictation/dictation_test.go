package dictation

import (
	"context"
	"encoding/base64"
	"errors"
	"slices"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kbukum/dictation/auth"
	"github.com/kbukum/dictation/clinical"
	"github.com/kbukum/dictation/component"
	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/session"
	"github.com/kbukum/dictation/transcription"
	"github.com/kbukum/dictation/transport"
)

var fullContext = session.NoteContext{EncounterID: 7, AuthorID: 3, NoteType: string(clinical.NoteDoctorDictation)}

func testConfig() Config {
	cfg := Config{IdleTimeout: 20 * time.Millisecond, SaveTimeout: 2 * time.Second}
	cfg.ApplyDefaults()
	return cfg
}

func newSession(t *testing.T, nc session.NoteContext) (*session.Registry, *session.State, *fakeConn) {
	t.Helper()
	ctx := context.Background()
	reg := session.NewRegistry(logger.NewNop())
	conn := newFakeConn()
	if _, err := reg.Register(ctx, "s1", &fakeHandshake{conn: conn}, session.Presence{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	st := session.NewState(ctx, "s1", 16)
	if nc != (session.NoteContext{}) {
		if err := st.Attach(nc); err != nil {
			t.Fatalf("Attach: %v", err)
		}
	}
	return reg, st, conn
}

func pushAll(t *testing.T, st *session.State, chunks ...string) {
	t.Helper()
	for _, c := range chunks {
		if err := st.Audio.Push(context.Background(), []byte(c)); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	st.Audio.End()
}

func runRecognizer(t *testing.T, r *Recognizer, st *session.State) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		r.Run(st.Context(), st)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("recognizer did not finish")
	}
}

func TestRecognizerSavesFinalTranscript(t *testing.T) {
	reg, st, conn := newSession(t, fullContext)
	provider := &fakeProvider{results: []transcription.Result{
		interim("hel"),
		final("hello "),
		{IsFinal: true},
		final(" world"),
	}}
	notes := &fakeNotes{}
	pushAll(t, st, "A", "B")

	runRecognizer(t, NewRecognizer(provider, reg, notes, testConfig(), logger.NewNop(), nil), st)

	if got := provider.stream(0).Sent(); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("audio sent %v, want [A B]", got)
	}
	if st.Transcript().Raw() != "hello world " {
		t.Errorf("transcript = %q", st.Transcript().Raw())
	}
	inputs := notes.Inputs()
	if len(inputs) != 1 || inputs[0].Content != "hello world" || inputs[0].NoteType != clinical.NoteDoctorDictation || inputs[0].EncounterID != 7 {
		t.Fatalf("unexpected note inputs %+v", inputs)
	}

	want := []string{TypeTranscriptUpdate, TypeTranscriptUpdate, TypeTranscriptUpdate, StatusNoteSaved}
	if got := conn.statuses(); !slices.Equal(got, want) {
		t.Fatalf("frames %v, want %v", got, want)
	}
	frames := conn.Frames()
	if frames[0]["text"] != "hel" || frames[0]["is_final"] != false || frames[1]["text"] != "hello " {
		t.Errorf("fragments not forwarded verbatim: %v", frames[:2])
	}
	if frames[3]["note_id"] != float64(42) {
		t.Errorf("note_saved frame %v", frames[3])
	}
	if st.IsActive() {
		t.Error("session must be inactive after recognition")
	}
	if provider.cfg.SampleRateHz != 16000 || provider.cfg.MaxSpeakers != 2 ||
		!provider.cfg.InterimEnabled() || !provider.cfg.PunctuationEnabled() {
		t.Errorf("unexpected stream config %+v", provider.cfg)
	}
}

func TestRecognizerSkipsSaveWithoutContext(t *testing.T) {
	tests := []struct {
		name    string
		nc      session.NoteContext
		results []transcription.Result
	}{
		{"missing encounter", session.NoteContext{AuthorID: 3, NoteType: "doctor_dictation"}, []transcription.Result{final("hello")}},
		{"missing author", session.NoteContext{EncounterID: 7, NoteType: "doctor_dictation"}, []transcription.Result{final("hello")}},
		{"empty transcript", fullContext, []transcription.Result{interim("uh")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, st, conn := newSession(t, tt.nc)
			notes := &fakeNotes{}
			pushAll(t, st, "A")

			runRecognizer(t, NewRecognizer(&fakeProvider{results: tt.results}, reg, notes, testConfig(), logger.NewNop(), nil), st)

			if len(notes.Inputs()) != 0 {
				t.Error("note must not be persisted")
			}
			frames := conn.Frames()
			last := frames[len(frames)-1]
			if last["status"] != StatusWarning || last["message"] != MessageNotSaved {
				t.Errorf("last frame %v, want not-saved warning", last)
			}
		})
	}
}

func TestRecognizerBackendFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		want     map[string]any
	}{
		{
			name:     "deadline exceeded",
			provider: &fakeProvider{results: []transcription.Result{final("partial")}, err: transcription.Normalize(status.Error(codes.DeadlineExceeded, "stream timeout"))},
			want:     map[string]any{"status": StatusTimeout, "message": MessageTimeout},
		},
		{
			name:     "backend unavailable",
			provider: &fakeProvider{err: status.Error(codes.Unavailable, "backend down")},
			want:     map[string]any{"status": StatusASRError, "message": "ASR processing failed: Unavailable"},
		},
		{
			name:     "stream refused",
			provider: &fakeProvider{startErr: status.Error(codes.PermissionDenied, "no credentials")},
			want:     map[string]any{"status": StatusASRError, "message": "ASR processing failed: PermissionDenied"},
		},
		{
			name:     "canceled",
			provider: &fakeProvider{err: transcription.ErrCanceled},
			want:     nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, st, conn := newSession(t, fullContext)
			notes := &fakeNotes{}
			pushAll(t, st, "A")

			runRecognizer(t, NewRecognizer(tt.provider, reg, notes, testConfig(), logger.NewNop(), nil), st)

			if len(notes.Inputs()) != 0 {
				t.Error("failed streams must not persist")
			}
			var statusFrames []map[string]any
			for _, f := range conn.Frames() {
				if _, ok := f["status"]; ok {
					statusFrames = append(statusFrames, f)
				}
			}
			if tt.want == nil {
				if len(statusFrames) != 0 {
					t.Errorf("canceled stream must be silent, got %v", statusFrames)
				}
				return
			}
			if len(statusFrames) != 1 || statusFrames[0]["status"] != tt.want["status"] || statusFrames[0]["message"] != tt.want["message"] {
				t.Errorf("frames %v, want %v", statusFrames, tt.want)
			}
		})
	}
}

func TestRecognizerSaveFailure(t *testing.T) {
	reg, st, conn := newSession(t, fullContext)
	notes := &fakeNotes{errs: []error{apperrors.NotFound("encounter", "7")}}
	pushAll(t, st, "A")

	runRecognizer(t, NewRecognizer(&fakeProvider{results: []transcription.Result{final("hello")}}, reg, notes, testConfig(), logger.NewNop(), nil), st)

	if len(notes.Inputs()) != 1 {
		t.Errorf("non-retryable failure attempted %d times", len(notes.Inputs()))
	}
	frames := conn.Frames()
	last := frames[len(frames)-1]
	if last["status"] != StatusError || last["message"] != MessageSaveFailed {
		t.Errorf("last frame %v, want save failure", last)
	}
}

func TestRecognizerRetriesTransientSaveErrors(t *testing.T) {
	reg, st, conn := newSession(t, fullContext)
	notes := &fakeNotes{errs: []error{apperrors.DatabaseError(errors.New("database is locked"))}}
	pushAll(t, st, "A")

	runRecognizer(t, NewRecognizer(&fakeProvider{results: []transcription.Result{final("hello")}}, reg, notes, testConfig(), logger.NewNop(), nil), st)

	if len(notes.Inputs()) != 2 {
		t.Errorf("attempts = %d, want 2", len(notes.Inputs()))
	}
	frames := conn.Frames()
	if last := frames[len(frames)-1]; last["status"] != StatusNoteSaved {
		t.Errorf("last frame %v, want note_saved", last)
	}
}

func TestRecognizerStopsWhenSessionUnregistered(t *testing.T) {
	reg, st, conn := newSession(t, fullContext)
	reg.Unregister(context.Background(), "s1")
	notes := &fakeNotes{}
	pushAll(t, st, "A")

	runRecognizer(t, NewRecognizer(&fakeProvider{results: []transcription.Result{final("hello")}}, reg, notes, testConfig(), logger.NewNop(), nil), st)

	if len(conn.Frames()) != 0 {
		t.Errorf("frames sent to unregistered session: %v", conn.Frames())
	}
	if len(notes.Inputs()) != 0 {
		t.Error("nothing was accumulated, nothing should be saved")
	}
}

func TestIngesterDecodesFrames(t *testing.T) {
	st := session.NewState(context.Background(), "s1", 16)
	conn := newFakeConn(
		binary("A"),
		text(base64.StdEncoding.EncodeToString([]byte("B"))),
		text("not audio!!"),
		text(`{"type":"ping"}`),
		text(`{"type":"stop"}`),
		binary("C"),
	)

	NewIngester(logger.NewNop(), nil).Run(st.Context(), st, conn)

	var got []string
	for {
		chunk, err := st.Audio.Pop(context.Background(), 10*time.Millisecond)
		if errors.Is(err, session.ErrEndOfStream) {
			break
		}
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		got = append(got, string(chunk))
	}
	if !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("chunks %v, want [A B]", got)
	}
}

func TestIngesterEndsAudioOnDisconnect(t *testing.T) {
	st := session.NewState(context.Background(), "s1", 16)
	conn := newFakeConn(binary("A"))
	close(conn.in)

	done := make(chan struct{})
	go func() {
		NewIngester(logger.NewNop(), nil).Run(st.Context(), st, conn)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ingester did not exit on disconnect")
	}
	if !st.Audio.Ended() {
		t.Error("audio buffer not ended")
	}
}

func TestIngesterExitsOnCancel(t *testing.T) {
	st := session.NewState(context.Background(), "s1", 16)
	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		NewIngester(logger.NewNop(), nil).Run(st.Context(), st, conn)
		close(done)
	}()
	st.Cancel(errors.New("recognizer finished"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ingester ignored cancellation")
	}
}

func newOrchestrator(provider *fakeProvider, notes *fakeNotes, cfg Config) (*Orchestrator, *session.Registry) {
	reg := session.NewRegistry(logger.NewNop())
	authn := fakeAuth{users: map[string]auth.Identity{"good-token": {UserID: 3, Username: "dr.house"}}}
	return NewOrchestrator(authn, reg, provider, notes, cfg, logger.NewNop(), nil), reg
}

func serveAsync(o *Orchestrator, hs transport.Handshake, req Request) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- o.Serve(context.Background(), hs, req) }()
	return errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestOrchestratorRejectsUnauthenticated(t *testing.T) {
	tests := []struct {
		token  string
		reason string
	}{
		{"", auth.ReasonAuthRequired},
		{"unknown-user", auth.ReasonUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			o, reg := newOrchestrator(&fakeProvider{}, &fakeNotes{}, testConfig())
			hs := &fakeHandshake{conn: newFakeConn()}
			err := o.Serve(context.Background(), hs, Request{SessionID: "s1", Token: tt.token, EncounterID: 7})
			if err == nil {
				t.Fatal("expected authentication error")
			}
			if !hs.rejected || hs.code != transport.ClosePolicyViolation || hs.reason != tt.reason {
				t.Errorf("reject = %v %d %q", hs.rejected, hs.code, hs.reason)
			}
			if reg.Count() != 0 || o.ActiveSessions() != 0 {
				t.Error("rejected connection must not create a session")
			}
		})
	}
}

func TestOrchestratorFullSession(t *testing.T) {
	provider := &fakeProvider{results: []transcription.Result{final("hello"), final("world")}}
	notes := &fakeNotes{}
	o, reg := newOrchestrator(provider, notes, testConfig())
	conn := newFakeConn(binary("A"), binary("B"), text(`{"type":"stop"}`))

	err := waitErr(t, serveAsync(o, &fakeHandshake{conn: conn}, Request{SessionID: "s1", Token: "good-token", EncounterID: 7}))
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}

	want := []string{StatusConnected, TypeTranscriptUpdate, TypeTranscriptUpdate, StatusNoteSaved}
	if got := conn.statuses(); !slices.Equal(got, want) {
		t.Fatalf("frames %v, want %v", got, want)
	}
	if msg := conn.Frames()[0]["message"]; msg != "Starting dictation for encounter 7..." {
		t.Errorf("connected message %q", msg)
	}
	inputs := notes.Inputs()
	if len(inputs) != 1 || inputs[0].Content != "hello world" || inputs[0].AuthorID != 3 || inputs[0].NoteType != clinical.NoteDoctorDictation {
		t.Errorf("note inputs %+v", inputs)
	}
	if !conn.closed || conn.code != transport.CloseNormal {
		t.Errorf("connection closed=%v code=%d", conn.closed, conn.code)
	}
	if reg.Count() != 0 || o.ActiveSessions() != 0 {
		t.Error("session not cleaned up")
	}
}

func TestOrchestratorDisconnectStillSaves(t *testing.T) {
	provider := &fakeProvider{results: []transcription.Result{final("patient stable")}}
	notes := &fakeNotes{}
	o, reg := newOrchestrator(provider, notes, testConfig())
	conn := newFakeConn(binary("A"))
	close(conn.in)

	if err := waitErr(t, serveAsync(o, &fakeHandshake{conn: conn}, Request{SessionID: "s1", Token: "good-token", EncounterID: 7})); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if len(notes.Inputs()) != 1 {
		t.Errorf("note not saved after disconnect")
	}
	if reg.Count() != 0 {
		t.Error("registry entry leaked")
	}
}

func TestOrchestratorRecoversTaskPanic(t *testing.T) {
	provider := &fakeProvider{results: []transcription.Result{final("hello")}}
	o, reg := newOrchestrator(provider, &fakeNotes{panics: true}, testConfig())
	conn := newFakeConn(binary("A"), text(`{"type":"stop"}`))

	err := waitErr(t, serveAsync(o, &fakeHandshake{conn: conn}, Request{SessionID: "s1", Token: "good-token", EncounterID: 7}))
	if err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	statuses := conn.statuses()
	if statuses[len(statuses)-1] != StatusFatalError {
		t.Errorf("frames %v, want trailing fatal_error", statuses)
	}
	if reg.Count() != 0 || !conn.closed {
		t.Error("session not cleaned up after panic")
	}
	if conn.code != transport.CloseInternalError {
		t.Errorf("close code %d, want %d", conn.code, transport.CloseInternalError)
	}
}

func TestOrchestratorCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	o, reg := newOrchestrator(&fakeProvider{}, &fakeNotes{}, cfg)

	first := newFakeConn()
	errc := serveAsync(o, &fakeHandshake{conn: first}, Request{SessionID: "s1", Token: "good-token", EncounterID: 7})
	deadline := time.Now().Add(2 * time.Second)
	for !reg.Contains("s1") {
		if time.Now().After(deadline) {
			t.Fatal("first session never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hs := &fakeHandshake{conn: newFakeConn()}
	err := o.Serve(context.Background(), hs, Request{SessionID: "s2", Token: "good-token", EncounterID: 8})
	if appErr, ok := apperrors.AsAppError(err); !ok || appErr.Code != apperrors.ErrCodeServiceUnavailable {
		t.Errorf("second session error = %v", err)
	}
	if !hs.rejected || hs.code != transport.CloseTryAgainLater {
		t.Errorf("second session reject = %v %d", hs.rejected, hs.code)
	}
	if h := o.Health(context.Background()); h.Status != component.StatusDegraded {
		t.Errorf("health at capacity = %s", h.Status)
	}

	close(first.in)
	if err := waitErr(t, errc); err != nil {
		t.Fatalf("first session: %v", err)
	}
}

func TestOrchestratorStopDrainsSessions(t *testing.T) {
	provider := &fakeProvider{results: []transcription.Result{final("discharge tomorrow")}}
	notes := &fakeNotes{}
	o, reg := newOrchestrator(provider, notes, testConfig())

	conn := newFakeConn(binary("A"))
	errc := serveAsync(o, &fakeHandshake{conn: conn}, Request{SessionID: "s1", Token: "good-token", EncounterID: 7})
	deadline := time.Now().Add(2 * time.Second)
	for o.ActiveSessions() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := o.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := waitErr(t, errc); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if len(notes.Inputs()) != 1 {
		t.Error("draining session did not save its note")
	}
	if reg.Count() != 0 {
		t.Error("registry not empty after Stop")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	bad := cfg
	bad.Provider = "azure"
	if err := bad.Validate(); err == nil {
		t.Error("expected unknown provider error")
	}
	bad = cfg
	bad.Stream.MinSpeakers = 3
	if err := bad.Validate(); err == nil {
		t.Error("expected speaker bounds error")
	}
}

func TestConfigApplyDefaultsStream(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	s := cfg.Stream
	if !s.PunctuationEnabled() || !s.InterimEnabled() {
		t.Errorf("punctuation=%v interim=%v, want both on", s.PunctuationEnabled(), s.InterimEnabled())
	}
	if s.MinSpeakers != 1 || s.MaxSpeakers != 2 || s.SampleRateHz != 16000 || s.Language != "en-US" {
		t.Errorf("stream defaults = %+v", s)
	}

	cfg = Config{Stream: transcription.StreamConfig{}.WithInterimResults(false)}
	cfg.ApplyDefaults()
	if cfg.Stream.InterimEnabled() {
		t.Error("explicit interim_results=false overridden by defaults")
	}
}

func startRecognizer(r *Recognizer, st *session.State) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		r.Run(st.Context(), st)
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("recognizer did not finish")
	}
}

func TestRecognizerKeepsStreamingThroughSilence(t *testing.T) {
	reg, st, _ := newSession(t, fullContext)
	provider := &fakeProvider{results: []transcription.Result{final("hello")}}
	notes := &fakeNotes{}
	cfg := testConfig()

	if err := st.Audio.Push(context.Background(), []byte("A")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	done := startRecognizer(NewRecognizer(provider, reg, notes, cfg, logger.NewNop(), nil), st)

	// Several idle windows pass with the session still active.
	time.Sleep(5 * cfg.IdleTimeout)
	select {
	case <-done:
		t.Fatal("recognizer stopped during silence")
	default:
	}
	pushAll(t, st, "B")
	waitDone(t, done)

	if got := provider.stream(0).Sent(); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("audio sent %v, want [A B]", got)
	}
	if inputs := notes.Inputs(); len(inputs) != 1 || inputs[0].Content != "hello" {
		t.Errorf("note inputs %+v, want one note with the transcript", inputs)
	}
}

func TestRecognizerStopsWhenSessionDeactivated(t *testing.T) {
	reg, st, _ := newSession(t, fullContext)
	provider := &fakeProvider{}
	cfg := testConfig()

	if err := st.Audio.Push(context.Background(), []byte("A")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	done := startRecognizer(NewRecognizer(provider, reg, &fakeNotes{}, cfg, logger.NewNop(), nil), st)

	time.Sleep(3 * cfg.IdleTimeout)
	st.Deactivate()
	waitDone(t, done)

	if got := provider.stream(0).Sent(); !slices.Equal(got, []string{"A"}) {
		t.Errorf("audio sent %v, want [A]", got)
	}
	if err := st.Audio.Push(context.Background(), []byte("B")); !errors.Is(err, session.ErrEnded) {
		t.Errorf("Push after deactivate = %v, want ErrEnded", err)
	}
}
