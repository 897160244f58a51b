// Package process runs external tools such as ffmpeg with output capture and
// graceful cancellation: SIGTERM to the process group, then SIGKILL after the
// grace period.
package process
