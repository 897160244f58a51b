package bootstrap

import (
	"time"

	"github.com/kbukum/dictation/logger"
)

const defaultGracefulTimeout = 15 * time.Second

// Option configures NewApp.
type Option func(*options)

type options struct {
	logger          *logger.Logger
	gracefulTimeout time.Duration
}

// WithLogger uses l instead of a logger built from the logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGracefulTimeout bounds the whole shutdown: stop hooks plus every
// component's Stop. The dictation server sets it above the note save
// timeout so draining sessions can still persist.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.gracefulTimeout = d
		}
	}
}
