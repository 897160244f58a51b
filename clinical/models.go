package clinical

import (
	"fmt"

	"github.com/kbukum/dictation/database"
)

// NoteType classifies a clinical note.
type NoteType string

const (
	NoteDoctorDictation NoteType = "doctor_dictation"
	NoteNurseUpdate     NoteType = "nurse_update"
	NoteHandoffSummary  NoteType = "handoff_summary"
	NoteOther           NoteType = "other"
)

// NoteTypes lists the accepted note types.
var NoteTypes = []NoteType{NoteDoctorDictation, NoteNurseUpdate, NoteHandoffSummary, NoteOther}

// Valid reports whether t is a known note type.
func (t NoteType) Valid() bool {
	for _, known := range NoteTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseNoteType returns the note type named s; empty means doctor dictation.
func ParseNoteType(s string) (NoteType, error) {
	if s == "" {
		return NoteDoctorDictation, nil
	}
	t := NoteType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown note type %q", s)
	}
	return t, nil
}

// User is a clinician who can author notes.
type User struct {
	database.Model
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Encounter is a patient visit that notes attach to.
type Encounter struct {
	database.Model
	PatientRef string `gorm:"not null" json:"patient_ref"`
	Status     string `json:"status"`
}

// ClinicalNote is a stored note.
type ClinicalNote struct {
	database.Model
	NoteType    NoteType `gorm:"not null;index" json:"note_type"`
	Content     string   `gorm:"not null" json:"content"`
	EncounterID int64    `gorm:"not null;index" json:"encounter_id"`
	AuthorID    int64    `gorm:"not null;index" json:"author_id"`
}

// TableName pins the table name used by the migrations.
func (ClinicalNote) TableName() string { return "clinical_notes" }
