// Package component defines the lifecycle contract shared by the dictation
// service's infrastructure: Start, Stop, and Health, plus a Registry that
// starts components in order and stops them in reverse.
package component
