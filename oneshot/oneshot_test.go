package oneshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/dictation/clinical"
	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/process"
	"github.com/kbukum/dictation/storage"
	"github.com/kbukum/dictation/storage/local"
	"github.com/kbukum/dictation/transcription"
)

type fakeTranscoder struct {
	err      error
	src, dst string
}

func (f *fakeTranscoder) Transcode(_ context.Context, src, dst string) error {
	f.src, f.dst = src, dst
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dst, []byte("RIFF-wav"), 0o600)
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
	req   transcription.TranscriptionRequest
	audio []byte
}

func (f *fakeTranscriber) Name() string                       { return "fake" }
func (f *fakeTranscriber) IsAvailable(_ context.Context) bool { return true }

func (f *fakeTranscriber) Transcribe(_ context.Context, req transcription.TranscriptionRequest) (*transcription.TranscriptionResponse, error) {
	f.calls++
	f.req = req
	f.audio, _ = os.ReadFile(req.AudioPath)
	if f.err != nil {
		return nil, f.err
	}
	return &transcription.TranscriptionResponse{Text: f.text}, nil
}

type fakeNotes struct {
	err    error
	inputs []clinical.NoteInput
}

func (f *fakeNotes) CreateNote(_ context.Context, in clinical.NoteInput) (*clinical.ClinicalNote, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	note := &clinical.ClinicalNote{EncounterID: in.EncounterID, AuthorID: in.AuthorID, NoteType: in.NoteType, Content: in.Content}
	note.ID = 11
	return note, nil
}

// memStorage is a remote-style backend without local paths.
type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{files: map[string][]byte{}} }

func (m *memStorage) Put(_ context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return nil
}

func (m *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *memStorage) Stat(_ context.Context, key string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return storage.Object{}, storage.ErrNotFound
	}
	return storage.Object{Key: key, Size: int64(len(data))}, nil
}

func (m *memStorage) List(_ context.Context, prefix string) ([]storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Object
	for k, v := range m.files {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.Object{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func newLocalStore(t *testing.T) *local.Storage {
	t.Helper()
	s, err := local.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return s
}

func assertNoScratch(t *testing.T, store storage.Storage, tc *fakeTranscoder) {
	t.Helper()
	files, err := store.List(context.Background(), "uploads/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("staged uploads left behind: %v", files)
	}
	if tc.dst != "" {
		if _, err := os.Stat(filepath.Dir(tc.dst)); !os.IsNotExist(err) {
			t.Errorf("transcode work dir %s still exists", filepath.Dir(tc.dst))
		}
	}
}

func upload(content string) Request {
	return Request{EncounterID: 5, AuthorID: 2, Filename: "visit.M4A", Audio: strings.NewReader(content)}
}

func TestProcessTranscodesAndSaves(t *testing.T) {
	store := newLocalStore(t)
	tc := &fakeTranscoder{}
	asr := &fakeTranscriber{text: "  patient reports chest pain  "}
	notes := &fakeNotes{}
	p := NewPipeline(store, tc, asr, notes, Config{}, logger.NewNop(), nil)

	res, err := p.Process(context.Background(), upload("m4a-bytes"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Transcript != "patient reports chest pain" || res.NoteID != 11 || !res.Transcoded || res.Warning != "" {
		t.Errorf("unexpected result %+v", res)
	}
	if filepath.Ext(tc.src) != ".m4a" || !strings.Contains(filepath.ToSlash(tc.src), "/uploads/") {
		t.Errorf("staged path %q", tc.src)
	}
	if asr.req.AudioPath != tc.dst || asr.req.Encoding != transcription.EncodingLinear16 || asr.req.SampleRateHz != 16000 {
		t.Errorf("transcriber request %+v", asr.req)
	}
	if string(asr.audio) != "RIFF-wav" {
		t.Errorf("transcriber read %q, want transcoded audio", asr.audio)
	}
	if len(notes.inputs) != 1 || notes.inputs[0].NoteType != clinical.NoteDoctorDictation || notes.inputs[0].EncounterID != 5 {
		t.Errorf("note inputs %+v", notes.inputs)
	}
	assertNoScratch(t, store, tc)
}

func TestProcessFallsBackToOriginal(t *testing.T) {
	store := newMemStorage()
	tc := &fakeTranscoder{err: apperrors.TranscodeFailed(process.ErrNotFound)}
	asr := &fakeTranscriber{text: "follow up in two weeks"}
	p := NewPipeline(store, tc, asr, &fakeNotes{}, Config{}, logger.NewNop(), nil)

	res, err := p.Process(context.Background(), upload("original-webm"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Transcoded || res.Warning != WarningNotTranscoded {
		t.Errorf("result %+v, want fallback warning", res)
	}
	if asr.req.AudioPath != tc.src || asr.req.Encoding != transcription.EncodingUnspecified {
		t.Errorf("transcriber request %+v, want original file", asr.req)
	}
	if string(asr.audio) != "original-webm" {
		t.Errorf("transcriber read %q, want original bytes", asr.audio)
	}
	if _, err := os.Stat(tc.src); !os.IsNotExist(err) {
		t.Errorf("localized copy %s not removed", tc.src)
	}
	assertNoScratch(t, store, tc)
}

func TestProcessCleansUpOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		asr      *fakeTranscriber
		notes    *fakeNotes
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "transcription fails",
			asr:      &fakeTranscriber{err: errors.New("backend exploded")},
			notes:    &fakeNotes{},
			wantCode: apperrors.ErrCodeTranscriptionFailed,
		},
		{
			name:     "nothing recognized",
			asr:      &fakeTranscriber{text: "   "},
			notes:    &fakeNotes{},
			wantCode: apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "persistence fails",
			asr:      &fakeTranscriber{text: "hello"},
			notes:    &fakeNotes{err: apperrors.NotFound("encounter", "5")},
			wantCode: apperrors.ErrCodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newLocalStore(t)
			tc := &fakeTranscoder{}
			p := NewPipeline(store, tc, tt.asr, tt.notes, Config{}, logger.NewNop(), nil)

			_, err := p.Process(context.Background(), upload("bytes"))
			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Code != tt.wantCode {
				t.Fatalf("err = %v, want code %s", err, tt.wantCode)
			}
			assertNoScratch(t, store, tc)
		})
	}
}

func TestProcessRejectsBadUploads(t *testing.T) {
	store := newLocalStore(t)
	asr := &fakeTranscriber{text: "x"}
	p := NewPipeline(store, &fakeTranscoder{}, asr, &fakeNotes{}, Config{MaxUploadBytes: 4}, logger.NewNop(), nil)

	tests := []struct {
		name string
		req  Request
	}{
		{"missing encounter", Request{AuthorID: 2, Audio: strings.NewReader("ab")}},
		{"unknown note type", Request{EncounterID: 5, AuthorID: 2, NoteType: "memo", Audio: strings.NewReader("ab")}},
		{"empty file", upload("")},
		{"too large", upload("abcdefgh")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Process(context.Background(), tt.req); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if asr.calls != 0 {
		t.Errorf("transcriber called %d times for rejected uploads", asr.calls)
	}
	assertNoScratch(t, store, &fakeTranscoder{})
}

func TestTranscriberCircuitOpens(t *testing.T) {
	asr := &fakeTranscriber{err: apperrors.TranscriptionFailed("fake", errors.New("unavailable"))}
	p := NewPipeline(newLocalStore(t), &fakeTranscoder{}, asr, &fakeNotes{}, Config{BreakerFailures: 2}, logger.NewNop(), nil)

	for range 2 {
		if _, err := p.Process(context.Background(), upload("bytes")); err == nil {
			t.Fatal("expected failure")
		}
	}
	_, err := p.Process(context.Background(), upload("bytes"))
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeServiceUnavailable {
		t.Fatalf("err = %v, want open circuit", err)
	}
	if asr.calls != 2 {
		t.Errorf("calls = %d, want 2", asr.calls)
	}
}

func TestFFmpegTranscoderMissingBinary(t *testing.T) {
	tc := NewFFmpegTranscoder(Config{FFmpegPath: "ffmpeg-does-not-exist-on-path"})
	if tc.Available() {
		t.Fatal("binary should not be available")
	}
	err := tc.Transcode(context.Background(), "in.webm", filepath.Join(t.TempDir(), "out.wav"))
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeTranscodeFailed {
		t.Fatalf("err = %v, want TRANSCODE_FAILED", err)
	}
	if !errors.Is(err, process.ErrNotFound) {
		t.Errorf("err = %v, want process.ErrNotFound in chain", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	cfg.Provider = "whisper"
	if err := cfg.Validate(); err == nil {
		t.Error("whisper without url should fail")
	}
	cfg.Whisper.URL = "http://localhost:8387"
	if err := cfg.Validate(); err != nil {
		t.Errorf("whisper with url: %v", err)
	}
}
