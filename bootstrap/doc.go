// Package bootstrap runs a command of the service binary through a fixed
// lifecycle: start the registered components, run the configure callbacks,
// start what they registered, then wait for a signal (Run) or a task
// (RunTask) and stop everything in reverse within the graceful timeout.
package bootstrap
