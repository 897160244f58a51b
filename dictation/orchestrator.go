package dictation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/dictation/auth"
	"github.com/kbukum/dictation/clinical"
	"github.com/kbukum/dictation/component"
	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/observability"
	"github.com/kbukum/dictation/resilience"
	"github.com/kbukum/dictation/session"
	"github.com/kbukum/dictation/transcription"
	"github.com/kbukum/dictation/transport"
)

// Close reasons beyond the authentication reasons.
const (
	ReasonServerBusy    = "Server busy"
	ReasonAuthFailure   = "Authentication unavailable"
	ReasonShuttingDown  = "Server shutting down"
	ReasonInternalError = "Internal error"
)

var (
	// ErrShuttingDown cancels sessions still running when the service stops.
	ErrShuttingDown = errors.New("dictation: shutting down")
	errRecognized   = errors.New("dictation: recognition finished")
)

// Authenticator resolves a connection token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// Request describes an incoming dictation connection.
type Request struct {
	SessionID   string
	Token       string
	EncounterID int64
	NoteType    clinical.NoteType
}

// Orchestrator runs dictation sessions: it authenticates and registers each
// connection, runs ingestion and recognition side by side, and tears the
// session down exactly once however it ends.
type Orchestrator struct {
	authn      Authenticator
	registry   *session.Registry
	ingester   *Ingester
	recognizer *Recognizer
	admission  *resilience.Bulkhead
	cfg        Config
	log        *logger.Logger
	metrics    *observability.Metrics

	base     context.Context
	stopBase context.CancelFunc
	mu       sync.Mutex
	live     map[string]*session.State
	wg       sync.WaitGroup
}

// NewOrchestrator wires the session pipeline. metrics may be nil.
func NewOrchestrator(
	authn Authenticator,
	registry *session.Registry,
	provider transcription.StreamingProvider,
	notes NoteCreator,
	cfg Config,
	log *logger.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	cfg.ApplyDefaults()
	base, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		authn:      authn,
		registry:   registry,
		ingester:   NewIngester(log, metrics),
		recognizer: NewRecognizer(provider, registry, notes, cfg, log, metrics),
		cfg:        cfg,
		log:        log.WithComponent("orchestrator"),
		metrics:    metrics,
		base:       base,
		stopBase:   stop,
		live:       make(map[string]*session.State),
	}
	o.admission = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "dictation-sessions",
		MaxConcurrent: cfg.MaxSessions,
		MaxWait:       cfg.AdmissionWait,
	})
	return o
}

// Serve runs one session to completion. Failures before registration are
// answered with a close frame and returned; failures after it are reported
// to the client and logged.
func (o *Orchestrator) Serve(ctx context.Context, hs transport.Handshake, req Request) (err error) {
	log := o.log.WithSession(req.SessionID).WithContext(ctx)

	identity, err := o.authn.Authenticate(ctx, req.Token)
	if err != nil {
		reason, kind := ReasonAuthFailure, "auth_error"
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeAuthenticationFailed {
			reason, kind = appErr.Message, "unauthenticated"
		}
		log.Warn("Dictation connection rejected", map[string]interface{}{
			"reason":          reason,
			logger.FieldError: err.Error(),
		})
		o.metrics.SessionRejected(ctx, kind)
		_ = hs.Reject(transport.ClosePolicyViolation, reason)
		return err
	}
	if req.NoteType == "" {
		req.NoteType = clinical.NoteDoctorDictation
	}

	if err := o.admission.Acquire(ctx); err != nil {
		log.Warn("Dictation connection rejected, at capacity", map[string]interface{}{"max_sessions": o.cfg.MaxSessions})
		o.metrics.SessionRejected(ctx, "capacity")
		_ = hs.Reject(transport.CloseTryAgainLater, ReasonServerBusy)
		return apperrors.ServiceUnavailable("dictation service").WithCause(err)
	}
	defer o.admission.Release()

	conn, err := o.registry.Register(ctx, req.SessionID, hs, session.Presence{
		UserID:      identity.UserID,
		EncounterID: req.EncounterID,
	})
	if err != nil {
		o.metrics.SessionRejected(ctx, "register")
		return err
	}

	o.wg.Add(1)
	defer o.wg.Done()
	return o.run(ctx, log, conn, identity, req)
}

func (o *Orchestrator) run(ctx context.Context, log *logger.Logger, conn transport.Conn, identity auth.Identity, req Request) (err error) {
	ctx = logger.WithValue(ctx, logger.FieldSessionID, req.SessionID)
	ctx, span := observability.StartSpan(ctx, observability.SpanSession,
		attribute.String(observability.AttrSessionID, req.SessionID),
		attribute.Int64(observability.AttrEncounterID, req.EncounterID),
		attribute.Int64(observability.AttrUserID, identity.UserID),
	)

	st := session.NewState(ctx, req.SessionID, o.cfg.BufferCapacity)
	stopOnShutdown := context.AfterFunc(o.base, func() { st.Cancel(ErrShuttingDown) })
	o.track(st)
	o.metrics.SessionStarted(ctx)

	var cleanupOnce sync.Once
	cleanup := func(outcome string) {
		cleanupOnce.Do(func() {
			st.Deactivate()
			o.registry.Unregister(ctx, req.SessionID)
			st.Close()
			stopOnShutdown()
			o.untrack(st)

			code, reason := transport.CloseNormal, ""
			switch {
			case errors.Is(context.Cause(st.Context()), ErrShuttingDown):
				code, reason = transport.CloseGoingAway, ReasonShuttingDown
			case outcome == "failed":
				code, reason = transport.CloseInternalError, ReasonInternalError
			}
			_ = conn.Close(code, reason)

			o.metrics.SessionEnded(ctx, outcome, time.Since(st.StartedAt))
			span.SetAttributes(attribute.String(observability.AttrOutcome, outcome))
			observability.EndSpan(span, err)
			log.Info("Dictation session closed", map[string]interface{}{
				"outcome":            outcome,
				logger.FieldDuration: time.Since(st.StartedAt).Milliseconds(),
			})
		})
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dictation session panic: %v", r)
			log.Error("Dictation session panicked", map[string]interface{}{
				"panic": fmt.Sprintf("%v", r),
				"stack": string(debug.Stack()),
			})
			o.registry.Send(req.SessionID, fatalFrame("panic"))
			cleanup("failed")
			return
		}
		outcome := "completed"
		if err != nil {
			outcome = "failed"
		}
		cleanup(outcome)
	}()

	if err := st.Attach(session.NoteContext{
		EncounterID: req.EncounterID,
		AuthorID:    identity.UserID,
		NoteType:    string(req.NoteType),
	}); err != nil {
		return err
	}

	o.registry.Send(req.SessionID, connectedFrame(req.EncounterID))
	log.Info("Dictation session started", map[string]interface{}{
		logger.FieldEncounterID: req.EncounterID,
		logger.FieldUserID:      identity.UserID,
		"note_type":             string(req.NoteType),
	})

	// A panicking task cancels the session so its sibling unwinds too.
	guard := func(task string, fn func()) func() error {
		return func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("Dictation task panicked", map[string]interface{}{
						"task":  task,
						"panic": fmt.Sprintf("%v", r),
						"stack": string(debug.Stack()),
					})
					err = fmt.Errorf("%s panic: %v", task, r)
					st.Cancel(err)
				}
			}()
			fn()
			return nil
		}
	}

	var tasks errgroup.Group
	tasks.Go(guard("ingester", func() { o.ingester.Run(st.Context(), st, conn) }))
	tasks.Go(guard("recognizer", func() {
		// The recognizer finishing ends the session; cancel unblocks a
		// pending receive.
		defer st.Cancel(errRecognized)
		o.recognizer.Run(st.Context(), st)
	}))
	if err := tasks.Wait(); err != nil {
		o.registry.Send(req.SessionID, fatalFrame("panic"))
		return err
	}
	return nil
}

func (o *Orchestrator) track(st *session.State) {
	o.mu.Lock()
	o.live[st.ID] = st
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(st *session.State) {
	o.mu.Lock()
	if o.live[st.ID] == st {
		delete(o.live, st.ID)
	}
	o.mu.Unlock()
}

// ActiveSessions returns the number of running sessions.
func (o *Orchestrator) ActiveSessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.live)
}

// Name implements component.Component.
func (o *Orchestrator) Name() string { return "dictation" }

// Start implements component.Component.
func (o *Orchestrator) Start(_ context.Context) error { return nil }

// Stop ends the audio of every running session so each can save its note,
// waits for them until ctx is done, then cancels whatever is left.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.registry.Broadcast(ctx, StatusFrame{Status: StatusWarning, Message: MessageShuttingDown})
	o.mu.Lock()
	for _, st := range o.live {
		st.Audio.End()
	}
	n := len(o.live)
	o.mu.Unlock()
	if n > 0 {
		o.log.Info("Draining dictation sessions", map[string]interface{}{"active_sessions": n})
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.stopBase()
		return nil
	case <-ctx.Done():
		o.stopBase()
		return ctx.Err()
	}
}

// Health implements component.Component.
func (o *Orchestrator) Health(_ context.Context) component.Health {
	active := o.ActiveSessions()
	status := component.StatusHealthy
	if active >= o.cfg.MaxSessions {
		status = component.StatusDegraded
	}
	return component.Health{
		Name:    o.Name(),
		Status:  status,
		Message: fmt.Sprintf("%d/%d sessions", active, o.cfg.MaxSessions),
	}
}
