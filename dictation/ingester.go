package dictation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/observability"
	"github.com/kbukum/dictation/session"
	"github.com/kbukum/dictation/transport"
)

// Receiver is the inbound half of a session connection.
type Receiver interface {
	Receive(ctx context.Context) (transport.Message, error)
}

// Ingester moves audio from the connection into the session buffer.
type Ingester struct {
	log     *logger.Logger
	metrics *observability.Metrics
}

// NewIngester creates an Ingester. metrics may be nil.
func NewIngester(log *logger.Logger, metrics *observability.Metrics) *Ingester {
	return &Ingester{log: log.WithComponent("ingester"), metrics: metrics}
}

// Run reads frames until the peer disconnects, sends a stop frame, the
// session goes inactive or ctx is done. It always ends the session's audio
// buffer on return.
func (in *Ingester) Run(ctx context.Context, st *session.State, conn Receiver) {
	log := in.log.WithSession(st.ID)
	defer st.Audio.End()

	chunks := 0
	for st.IsActive() {
		msg, err := conn.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrDisconnected):
				log.Info("Client disconnected", map[string]interface{}{"chunks": chunks})
			case ctx.Err() != nil:
				log.Debug("Ingestion stopped", map[string]interface{}{"chunks": chunks})
			default:
				log.Error("Receive failed", map[string]interface{}{logger.FieldError: err.Error()})
			}
			return
		}

		chunk, stop := in.decode(log, msg)
		if stop {
			log.Info("Client finished audio", map[string]interface{}{"chunks": chunks})
			return
		}
		if len(chunk) == 0 {
			continue
		}
		if err := st.Audio.Push(ctx, chunk); err != nil {
			log.Debug("Audio buffer closed", map[string]interface{}{logger.FieldError: err.Error()})
			return
		}
		chunks++
		in.metrics.AudioChunk(ctx, len(chunk))
	}
}

// decode turns a frame into audio. Text frames carry base64 audio or a JSON
// control frame; anything else is skipped.
func (in *Ingester) decode(log *logger.Logger, msg transport.Message) (chunk []byte, stop bool) {
	if msg.Kind == transport.Binary {
		return msg.Data, false
	}

	text := strings.TrimSpace(string(msg.Data))
	if strings.HasPrefix(text, "{") {
		var ctrl ControlFrame
		if err := json.Unmarshal([]byte(text), &ctrl); err == nil && ctrl.Type == ControlStop {
			return nil, true
		}
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		log.Debug("Skipping non-audio text frame", map[string]interface{}{"bytes": len(msg.Data)})
		return nil, false
	}
	return data, false
}
