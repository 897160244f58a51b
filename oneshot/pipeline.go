package oneshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/dictation/clinical"
	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/observability"
	"github.com/kbukum/dictation/process"
	"github.com/kbukum/dictation/resilience"
	"github.com/kbukum/dictation/storage"
	"github.com/kbukum/dictation/transcription"
	"github.com/kbukum/dictation/validation"
)

// WarningNotTranscoded is returned when the original upload was transcribed
// because transcoding failed.
const WarningNotTranscoded = "transcoded=false: audio was sent in its uploaded format"

// NoteCreator persists a transcript as a clinical note.
type NoteCreator interface {
	CreateNote(ctx context.Context, in clinical.NoteInput) (*clinical.ClinicalNote, error)
}

// Request is one uploaded recording.
type Request struct {
	EncounterID int64             `validate:"required,gt=0"`
	AuthorID    int64             `validate:"required,gt=0"`
	NoteType    clinical.NoteType `validate:"omitempty,oneof=doctor_dictation nurse_update handoff_summary other"`
	Filename    string
	Audio       io.Reader `validate:"required"`
}

// Result is the outcome of a successful upload.
type Result struct {
	Transcript string `json:"transcript"`
	NoteID     int64  `json:"note_id"`
	Transcoded bool   `json:"transcoded"`
	Warning    string `json:"warning,omitempty"`
}

// Pipeline stages, transcodes, transcribes and persists uploads.
type Pipeline struct {
	store       storage.Storage
	transcoder  Transcoder
	transcriber transcription.Provider
	notes       NoteCreator
	breaker     *resilience.CircuitBreaker
	cfg         Config
	log         *logger.Logger
	metrics     *observability.Metrics
}

// NewPipeline creates a Pipeline. metrics may be nil.
func NewPipeline(store storage.Storage, transcoder Transcoder, transcriber transcription.Provider, notes NoteCreator, cfg Config, log *logger.Logger, metrics *observability.Metrics) *Pipeline {
	cfg.ApplyDefaults()
	log = log.WithComponent("oneshot")

	breakerCfg := resilience.DefaultCircuitBreakerConfig(transcriber.Name())
	breakerCfg.MaxFailures = cfg.BreakerFailures
	breakerCfg.Timeout = cfg.BreakerTimeout
	breakerCfg.IsFailure = func(err error) bool {
		// Only backend faults count; rejected audio does not.
		appErr, ok := apperrors.AsAppError(err)
		return !ok || appErr.Retryable
	}
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		log.Warn("Transcriber circuit changed state", map[string]interface{}{
			"provider": name,
			"from":     from.String(),
			"to":       to.String(),
		})
	}

	return &Pipeline{
		store:       store,
		transcoder:  transcoder,
		transcriber: transcriber,
		notes:       notes,
		breaker:     resilience.NewCircuitBreaker(breakerCfg),
		cfg:         cfg,
		log:         log,
		metrics:     metrics,
	}
}

// Process runs one upload to completion. Scratch files are removed on every
// return path.
func (p *Pipeline) Process(ctx context.Context, req Request) (res *Result, err error) {
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	if req.NoteType == "" {
		req.NoteType = clinical.NoteDoctorDictation
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanOneShot,
		attribute.Int64(observability.AttrEncounterID, req.EncounterID),
		attribute.Int64(observability.AttrUserID, req.AuthorID),
		attribute.String(observability.AttrProvider, p.transcriber.Name()),
	)
	defer func() { observability.EndSpan(span, err) }()

	log := p.log.WithContext(ctx).WithFields(map[string]interface{}{
		logger.FieldEncounterID: req.EncounterID,
		logger.FieldUserID:      req.AuthorID,
	})
	start := time.Now()

	key, err := p.stage(ctx, req)
	if err != nil {
		return nil, err
	}
	defer p.removeScratch(ctx, log, key)

	src, release, err := storage.Localize(ctx, p.store, key)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("localize upload: %w", err))
	}
	defer release()

	workDir, err := os.MkdirTemp("", "oneshot-*")
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create work dir: %w", err))
	}
	defer os.RemoveAll(workDir) //nolint:errcheck

	res = &Result{Transcoded: true}
	audio := transcription.TranscriptionRequest{
		AudioPath:    filepath.Join(workDir, "transcoded.wav"),
		Encoding:     transcription.EncodingLinear16,
		SampleRateHz: p.cfg.SampleRateHz,
	}
	if err := p.transcode(ctx, src, audio.AudioPath); err != nil {
		log.Warn("Transcoding failed, using original upload", map[string]interface{}{
			logger.FieldPhase: "transcode",
			logger.FieldError: err.Error(),
		})
		p.metrics.TranscodeFallback(ctx, fallbackReason(err))
		audio.AudioPath = src
		audio.Encoding = transcription.EncodingUnspecified
		audio.SampleRateHz = 0
		res.Transcoded = false
		res.Warning = WarningNotTranscoded
	}

	text, err := p.transcribe(ctx, audio)
	if err != nil {
		log.Error("Transcription failed", map[string]interface{}{
			logger.FieldPhase: "transcribe",
			logger.FieldError: err.Error(),
		})
		return nil, err
	}
	if text == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "No speech was recognized in the uploaded audio.", http.StatusUnprocessableEntity)
	}
	res.Transcript = text

	note, err := p.notes.CreateNote(ctx, clinical.NoteInput{
		EncounterID: req.EncounterID,
		AuthorID:    req.AuthorID,
		NoteType:    req.NoteType,
		Content:     text,
	})
	if err != nil {
		log.Error("Failed to save transcribed note", map[string]interface{}{
			logger.FieldPhase: "persist",
			logger.FieldError: err.Error(),
		})
		p.metrics.NotePersisted(ctx, "error")
		return nil, err
	}
	p.metrics.NotePersisted(ctx, "saved")
	res.NoteID = note.ID
	span.SetAttributes(attribute.Int64(observability.AttrNoteID, note.ID))

	log.Info("Upload transcribed", map[string]interface{}{
		logger.FieldNoteID:   note.ID,
		"transcoded":         res.Transcoded,
		logger.FieldDuration: time.Since(start).Milliseconds(),
	})
	return res, nil
}

// stage copies the upload to scratch storage under a fresh key.
func (p *Pipeline) stage(ctx context.Context, req Request) (string, error) {
	key := path.Join(p.cfg.ScratchPrefix, uuid.NewString()+strings.ToLower(filepath.Ext(req.Filename)))
	body := &countingReader{r: io.LimitReader(req.Audio, p.cfg.MaxUploadBytes+1)}
	if err := p.store.Put(ctx, key, body); err != nil {
		p.removeScratch(ctx, p.log, key)
		return "", apperrors.Internal(fmt.Errorf("stage upload: %w", err))
	}
	if body.n > p.cfg.MaxUploadBytes {
		p.removeScratch(ctx, p.log, key)
		return "", apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("Upload exceeds the %d byte limit.", p.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
	}
	if body.n == 0 {
		p.removeScratch(ctx, p.log, key)
		return "", apperrors.InvalidInput("file", "uploaded file is empty")
	}
	return key, nil
}

func (p *Pipeline) transcode(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TranscodeTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, observability.SpanTranscode)
	err := p.transcoder.Transcode(ctx, src, dst)
	observability.EndSpan(span, err)
	return err
}

func (p *Pipeline) transcribe(ctx context.Context, req transcription.TranscriptionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, observability.SpanTranscribeAudio,
		attribute.String(observability.AttrProvider, p.transcriber.Name()),
	)

	var resp *transcription.TranscriptionResponse
	err := p.breaker.Execute(func() error {
		var err error
		resp, err = p.transcriber.Transcribe(ctx, req)
		return err
	})
	observability.EndSpan(span, err)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", apperrors.ServiceUnavailable("speech recognition service").WithCause(err)
	}
	if err != nil {
		if _, ok := apperrors.AsAppError(err); ok {
			return "", err
		}
		return "", apperrors.TranscriptionFailed(p.transcriber.Name(), err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// removeScratch deletes a staged upload even if ctx is already done.
func (p *Pipeline) removeScratch(ctx context.Context, log *logger.Logger, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.store.Remove(ctx, key); err != nil {
		log.Warn("Failed to remove staged upload", map[string]interface{}{
			"key":             key,
			logger.FieldError: err.Error(),
		})
	}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, process.ErrNotFound):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}
