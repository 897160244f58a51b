package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter installs a global meter provider exporting over OTLP HTTP.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, cfg Config, serviceName, serviceVersion, environment string) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(ctx, serviceName, serviceVersion, environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Metrics holds the service's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requestTotal      metric.Int64Counter
	requestDuration   metric.Float64Histogram
	sessionsActive    metric.Int64UpDownCounter
	sessionsTotal     metric.Int64Counter
	sessionDuration   metric.Float64Histogram
	audioChunks       metric.Int64Counter
	audioBytes        metric.Int64Counter
	transcriptUpdates metric.Int64Counter
	notesTotal        metric.Int64Counter
	transcodeFallback metric.Int64Counter
}

// NewMetrics creates the instruments on meter. Pass otel.Meter(...) or a
// test provider's meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.requestTotal, "http.server.requests", "HTTP requests by route and status"},
		{&m.sessionsTotal, "dictation.sessions", "Dictation sessions by outcome"},
		{&m.audioChunks, "dictation.audio.chunks", "Audio chunks accepted from clients"},
		{&m.audioBytes, "dictation.audio.bytes", "Audio bytes accepted from clients"},
		{&m.transcriptUpdates, "dictation.transcript.updates", "Transcript updates forwarded to clients"},
		{&m.notesTotal, "clinical.notes", "Clinical note persistence attempts by status"},
		{&m.transcodeFallback, "oneshot.transcode.fallback", "Uploads sent to ASR without transcoding"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	if m.requestDuration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating http.server.duration histogram: %w", err)
	}
	if m.sessionDuration, err = meter.Float64Histogram("dictation.session.duration",
		metric.WithDescription("Dictation session duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating dictation.session.duration histogram: %w", err)
	}
	if m.sessionsActive, err = meter.Int64UpDownCounter("dictation.sessions.active",
		metric.WithDescription("Currently connected dictation sessions")); err != nil {
		return nil, fmt.Errorf("creating dictation.sessions.active gauge: %w", err)
	}
	return m, nil
}

// DefaultMetrics creates the instruments on the global meter provider.
// Instruments created before InitMeter runs are delegated once it does.
func DefaultMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(instrumentationName))
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.requestTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1)
}

// SessionEnded decrements the active session gauge and records the outcome.
func (m *Metrics) SessionEnded(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, -1)
	m.sessionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
	m.sessionDuration.Record(ctx, d.Seconds())
}

// SessionRejected records a connection refused before it became a session.
func (m *Metrics) SessionRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.sessionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, "rejected_"+reason)))
}

// AudioChunk records one accepted audio chunk.
func (m *Metrics) AudioChunk(ctx context.Context, size int) {
	if m == nil {
		return
	}
	m.audioChunks.Add(ctx, 1)
	m.audioBytes.Add(ctx, int64(size))
}

// TranscriptUpdate records a forwarded transcript update.
func (m *Metrics) TranscriptUpdate(ctx context.Context, final bool) {
	if m == nil {
		return
	}
	m.transcriptUpdates.Add(ctx, 1, metric.WithAttributes(attribute.Bool("is_final", final)))
}

// NotePersisted records a persistence attempt: "saved", "error" or "skipped".
func (m *Metrics) NotePersisted(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.notesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// TranscodeFallback records an upload sent in its original encoding.
func (m *Metrics) TranscodeFallback(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.transcodeFallback.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
