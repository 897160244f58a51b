// Package oneshot transcribes a complete uploaded recording and saves it as
// a clinical note.
//
// An upload is staged to scratch storage, transcoded to mono PCM WAV with
// ffmpeg, sent to a single non-streaming transcription call and persisted.
// A failed transcode is not fatal: the original file is transcribed instead
// and the result carries a warning. Every scratch file is removed before
// Process returns.
package oneshot
