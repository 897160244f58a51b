package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	FormatPretty  = "pretty"
	FormatConsole = "console"
	FormatJSON    = "json"
)

const redacted = "[redacted]"

// Logger is a zerolog logger scoped to one service. Field values under a
// redacted key are masked before they are written.
type Logger struct {
	zl      zerolog.Logger
	service string
	redact  map[string]struct{}
}

// New builds a logger writing to cfg.Output.
func New(cfg *Config, service string) *Logger {
	w := io.Writer(os.Stdout)
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(cfg, service, w)
}

// NewWithWriter builds a logger writing to w. It also sets zerolog's global
// level, which Gin's mode follows.
func NewWithWriter(cfg *Config, service string, w io.Writer) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var zc zerolog.Context
	if isConsole(cfg.Format) {
		zc = zerolog.New(consoleWriter(cfg, service, w)).With()
	} else {
		zc = zerolog.New(w).With()
		if service != "" {
			zc = zc.Str("service", service)
		}
	}
	if cfg.Timestamp {
		zc = zc.Timestamp()
	}
	if cfg.Caller {
		zc = zc.Caller()
	}

	l := &Logger{zl: zc.Logger(), service: service, redact: map[string]struct{}{}}
	for _, k := range cfg.Redact {
		l.redact[k] = struct{}{}
	}
	return l
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) derive(zc zerolog.Context) *Logger {
	return &Logger{zl: zc.Logger(), service: l.service, redact: l.redact}
}

type contextKey string

// WithValue stores a loggable id on ctx for WithContext to pick up.
func WithValue(ctx context.Context, field string, value any) context.Context {
	return context.WithValue(ctx, contextKey(field), value)
}

// WithContext adds the trace, request, user and session ids found on ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	zc := l.zl.With()
	for _, key := range []string{FieldTraceID, FieldRequestID, FieldUserID, FieldSessionID} {
		if v := ctx.Value(contextKey(key)); v != nil {
			zc = zc.Str(key, fmt.Sprint(v))
		}
	}
	return l.derive(zc)
}

func (l *Logger) WithComponent(name string) *Logger {
	return l.derive(l.zl.With().Str(FieldComponent, name))
}

func (l *Logger) WithSession(sessionID string) *Logger {
	return l.derive(l.zl.With().Str(FieldSessionID, sessionID))
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zc := l.zl.With()
	for k, v := range fields {
		zc = zc.Interface(k, l.mask(k, v))
	}
	return l.derive(zc)
}

func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.zl.With().Err(err))
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *Logger) emit(e *zerolog.Event, msg string, fields []map[string]interface{}) {
	if e == nil {
		return
	}
	for _, m := range fields {
		for k, v := range m {
			e.Interface(k, l.mask(k, v))
		}
	}
	e.Msg(msg)
}

func (l *Logger) mask(key string, v interface{}) interface{} {
	if _, ok := l.redact[key]; ok {
		return redacted
	}
	return v
}

var global atomic.Pointer[Logger]

// Init replaces the global logger with one built from cfg.
func Init(cfg *Config) {
	cfg.ApplyDefaults()
	global.Store(New(cfg, cfg.ServiceName))
}

func SetGlobalLogger(l *Logger) { global.Store(l) }

// GetGlobalLogger returns the global logger, a console logger at info
// until Init or SetGlobalLogger runs.
func GetGlobalLogger() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	cfg := &Config{}
	cfg.ApplyDefaults()
	global.CompareAndSwap(nil, New(cfg, ""))
	return global.Load()
}

func Debug(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Error(msg, fields...) }
