// Package observability wires OpenTelemetry tracing and metrics.
//
// The Component installs OTLP HTTP exporters when enabled. Spans are started
// with StartSpan and closed with EndSpan. Metrics carries the dictation
// instruments (sessions, audio, transcript updates, note persistence, HTTP
// requests); a nil *Metrics is a no-op so tests can pass nil.
package observability
