// Package logger is structured logging on zerolog. Loggers are narrowed per
// component or per dictation session, and keys listed in Config.Redact
// (transcript and content by default) are masked on every line:
//
//	log := logger.New(&cfg.Logging, "dictation").WithComponent("registry")
//	log.WithSession(id).Info("session registered")
package logger
