package dictation

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/dictation/clinical"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/observability"
	"github.com/kbukum/dictation/resilience"
	"github.com/kbukum/dictation/session"
	"github.com/kbukum/dictation/transcription"
)

// Sender delivers frames to a registered session.
type Sender interface {
	Send(id string, msg any) bool
	Contains(id string) bool
}

// NoteCreator persists a finished transcript.
type NoteCreator interface {
	CreateNote(ctx context.Context, in clinical.NoteInput) (*clinical.ClinicalNote, error)
}

// Recognizer streams a session's audio to a speech backend, forwards results
// to the client and saves the final transcript.
type Recognizer struct {
	provider transcription.StreamingProvider
	sender   Sender
	notes    NoteCreator
	cfg      Config
	log      *logger.Logger
	metrics  *observability.Metrics
}

// NewRecognizer creates a Recognizer. metrics may be nil.
func NewRecognizer(provider transcription.StreamingProvider, sender Sender, notes NoteCreator, cfg Config, log *logger.Logger, metrics *observability.Metrics) *Recognizer {
	cfg.ApplyDefaults()
	return &Recognizer{
		provider: provider,
		sender:   sender,
		notes:    notes,
		cfg:      cfg,
		log:      log.WithComponent("recognizer"),
		metrics:  metrics,
	}
}

// Run processes one session until the backend stream completes or fails.
// The session is inactive when Run returns.
func (r *Recognizer) Run(ctx context.Context, st *session.State) {
	log := r.log.WithSession(st.ID).WithContext(ctx)
	defer st.Deactivate()

	ctx, span := observability.StartSpan(ctx, observability.SpanRecognition,
		attribute.String(observability.AttrSessionID, st.ID),
		attribute.String(observability.AttrProvider, r.provider.Name()),
	)
	err := r.recognize(ctx, log, st)
	observability.EndSpan(span, err)

	switch {
	case err == nil:
		r.persist(ctx, log, st)
	case errors.Is(err, transcription.ErrDeadlineExceeded):
		log.Warn("Recognition stream timed out")
		r.sender.Send(st.ID, StatusFrame{Status: StatusTimeout, Message: MessageTimeout})
	case errors.Is(err, transcription.ErrCanceled), ctx.Err() != nil:
		log.Info("Recognition stream canceled")
	default:
		log.Error("Recognition failed", map[string]interface{}{logger.FieldError: err.Error()})
		r.sender.Send(st.ID, asrErrorFrame(transcription.Kind(err)))
	}
}

// recognize runs the stream and accumulates final fragments. A nil return
// means the stream completed normally, or stopped early because the session
// went away; either way the transcript is ready to persist.
func (r *Recognizer) recognize(ctx context.Context, log *logger.Logger, st *session.State) error {
	streamCtx, cancel := context.WithTimeout(ctx, r.cfg.StreamDeadline)
	defer cancel()

	stream, err := r.provider.StartStream(streamCtx, r.cfg.Stream)
	if err != nil {
		return transcription.Normalize(err)
	}
	log.Debug("Recognition stream opened")

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		r.pump(streamCtx, log, st, stream)
	}()
	defer func() {
		cancel()
		<-pumpDone
	}()

	updates := 0
	for {
		res, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(streamCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return errors.Join(transcription.ErrDeadlineExceeded, err)
			}
			return transcription.Normalize(err)
		}
		if !st.IsActive() || !r.sender.Contains(st.ID) {
			log.Warn("Session closed during recognition, stopping")
			break
		}
		if len(res.Alternatives) == 0 {
			continue
		}

		fragment := res.Alternatives[0].Transcript
		r.sender.Send(st.ID, TranscriptFrame{Type: TypeTranscriptUpdate, Text: fragment, IsFinal: res.IsFinal})
		r.metrics.TranscriptUpdate(ctx, res.IsFinal)
		updates++
		if res.IsFinal {
			st.Transcript().AppendFinal(fragment)
		}
	}

	log.Info("Recognition stream finished", map[string]interface{}{
		"updates":          updates,
		"transcript_bytes": len(st.Transcript().Raw()),
	})
	return nil
}

// pump feeds buffered audio to the stream until the end marker, an inactive
// session or ctx, then half-closes the stream.
func (r *Recognizer) pump(ctx context.Context, log *logger.Logger, st *session.State, stream transcription.Stream) {
	defer func() {
		if err := stream.CloseSend(); err != nil {
			log.Debug("CloseSend failed", map[string]interface{}{logger.FieldError: err.Error()})
		}
	}()

	for {
		chunk, err := st.Audio.Pop(ctx, r.cfg.IdleTimeout)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrIdleTimeout):
			if st.IsActive() {
				continue
			}
			return
		case errors.Is(err, session.ErrEndOfStream):
			log.Debug("Audio stream ended")
			return
		default:
			return
		}

		if err := stream.Send(chunk); err != nil {
			log.Warn("Sending audio failed", map[string]interface{}{logger.FieldError: err.Error()})
			return
		}
	}
}

// persist saves the transcript if the session has everything a note needs
// and reports the outcome to the client.
func (r *Recognizer) persist(ctx context.Context, log *logger.Logger, st *session.State) {
	text := st.Transcript().Text()
	nc := st.Note()
	if text == "" || !nc.Complete() {
		log.Warn("Skipping note save: missing context or empty transcript", map[string]interface{}{
			logger.FieldEncounterID: nc.EncounterID,
			"transcript_bytes":      len(text),
		})
		r.metrics.NotePersisted(ctx, "skipped")
		r.sender.Send(st.ID, StatusFrame{Status: StatusWarning, Message: MessageNotSaved})
		return
	}

	// The save outlives a client that has already left.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.SaveTimeout)
	defer cancel()
	saveCtx, span := observability.StartSpan(saveCtx, observability.SpanPersistNote,
		attribute.Int64(observability.AttrEncounterID, nc.EncounterID),
	)

	input := clinical.NoteInput{
		EncounterID: nc.EncounterID,
		AuthorID:    nc.AuthorID,
		NoteType:    clinical.NoteType(nc.NoteType),
		Content:     text,
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = r.cfg.SaveAttempts
	retry.RetryIf = resilience.RetryIfRetryable
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Warn("Retrying note save", map[string]interface{}{
			"attempt":         attempt,
			logger.FieldError: err.Error(),
			"backoff":         backoff.String(),
		})
	}

	note, err := resilience.Retry(saveCtx, retry, func() (*clinical.ClinicalNote, error) {
		return r.notes.CreateNote(saveCtx, input)
	})
	if note != nil {
		span.SetAttributes(attribute.Int64(observability.AttrNoteID, note.ID))
	}
	observability.EndSpan(span, err)

	if err != nil {
		log.Error("Failed to save clinical note", map[string]interface{}{
			logger.FieldEncounterID: nc.EncounterID,
			logger.FieldError:       err.Error(),
		})
		r.metrics.NotePersisted(ctx, "error")
		r.sender.Send(st.ID, StatusFrame{Status: StatusError, Message: MessageSaveFailed})
		return
	}

	log.Info("Clinical note saved", map[string]interface{}{
		logger.FieldNoteID:      note.ID,
		logger.FieldEncounterID: note.EncounterID,
	})
	r.metrics.NotePersisted(ctx, "saved")
	r.sender.Send(st.ID, StatusFrame{Status: StatusNoteSaved, NoteID: note.ID})
}
