package dictation

import "fmt"

// Outbound frame status values.
const (
	StatusConnected  = "connected"
	StatusNoteSaved  = "note_saved"
	StatusError      = "error"
	StatusWarning    = "warning"
	StatusTimeout    = "timeout"
	StatusASRError   = "asr_error"
	StatusFatalError = "fatal_error"

	TypeTranscriptUpdate = "transcript_update"
)

// Client-facing messages.
const (
	MessageSaveFailed = "Failed to save clinical note."
	MessageNotSaved   = "Note not saved (missing context or empty transcript)."
	MessageTimeout    = "ASR stream timed out."

	MessageShuttingDown = "Server shutting down; saving the current note."
)

// StatusFrame reports a session lifecycle event.
type StatusFrame struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	NoteID  int64  `json:"note_id,omitempty"`
}

// TranscriptFrame carries one recognized fragment.
type TranscriptFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// ControlFrame is an inbound JSON text frame that is not audio.
type ControlFrame struct {
	Type string `json:"type"`
}

// ControlStop asks the server to finish the audio stream and save the note
// while keeping the connection open for the result.
const ControlStop = "stop"

func connectedFrame(encounterID int64) StatusFrame {
	return StatusFrame{
		Status:  StatusConnected,
		Message: fmt.Sprintf("Starting dictation for encounter %d...", encounterID),
	}
}

func asrErrorFrame(kind string) StatusFrame {
	return StatusFrame{Status: StatusASRError, Message: "ASR processing failed: " + kind}
}

func fatalFrame(kind string) StatusFrame {
	return StatusFrame{Status: StatusFatalError, Message: "Server error: " + kind}
}
