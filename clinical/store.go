package clinical

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kbukum/dictation/auth"
	"github.com/kbukum/dictation/database"
	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/validation"
)

// NoteInput is the data needed to create a note.
type NoteInput struct {
	EncounterID int64    `json:"encounter_id" validate:"required,gt=0"`
	AuthorID    int64    `json:"author_id" validate:"required,gt=0"`
	NoteType    NoteType `json:"note_type" validate:"required,oneof=doctor_dictation nurse_update handoff_summary other"`
	Content     string   `json:"content" validate:"required"`
}

// Store reads and writes users, encounters and notes.
type Store struct {
	db  *database.DB
	log *logger.Logger
}

// NewStore creates a Store on db.
func NewStore(db *database.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.WithComponent("clinical")}
}

// ResolveUser looks up a user by username. It implements auth.UserResolver.
func (s *Store) ResolveUser(ctx context.Context, username string) (auth.Identity, error) {
	var u User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return auth.Identity{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.Identity{}, database.FromDatabase(err, "user")
	}
	return auth.Identity{UserID: u.ID, Username: u.Username}, nil
}

// CreateNote validates in and stores a note with trimmed content. The
// encounter and author must exist and content must not be blank.
func (s *Store) CreateNote(ctx context.Context, in NoteInput) (*ClinicalNote, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Validate(in); err != nil {
		return nil, err
	}

	start := time.Now()
	note := &ClinicalNote{
		NoteType:    in.NoteType,
		Content:     in.Content,
		EncounterID: in.EncounterID,
		AuthorID:    in.AuthorID,
	}
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := exists(tx, &Encounter{}, in.EncounterID, "encounter"); err != nil {
			return err
		}
		if err := exists(tx, &User{}, in.AuthorID, "user"); err != nil {
			return err
		}
		if err := tx.Create(note).Error; err != nil {
			return database.FromDatabase(err, "clinical_note")
		}
		return nil
	})
	if err != nil {
		s.log.WithContext(ctx).Error("Failed to save clinical note", map[string]interface{}{
			logger.FieldEncounterID: in.EncounterID,
			logger.FieldUserID:      in.AuthorID,
			logger.FieldError:       err.Error(),
		})
		return nil, err
	}

	s.log.WithContext(ctx).Info("Clinical note saved", map[string]interface{}{
		logger.FieldNoteID:      note.ID,
		logger.FieldEncounterID: note.EncounterID,
		"note_type":             string(note.NoteType),
		logger.FieldDuration:    time.Since(start).Milliseconds(),
	})
	return note, nil
}

func exists(tx *gorm.DB, model any, id int64, resource string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return database.FromDatabase(err, resource)
	}
	if count == 0 {
		return apperrors.NotFound(resource, strconv.FormatInt(id, 10))
	}
	return nil
}

// ListNotes returns an encounter's notes, newest first.
func (s *Store) ListNotes(ctx context.Context, encounterID int64) ([]ClinicalNote, error) {
	var notes []ClinicalNote
	err := s.db.WithContext(ctx).
		Where("encounter_id = ?", encounterID).
		Order("created_at DESC, id DESC").
		Find(&notes).Error
	if err != nil {
		return nil, database.FromDatabase(err, "clinical_note")
	}
	return notes, nil
}

// GetEncounter returns an encounter by id.
func (s *Store) GetEncounter(ctx context.Context, id int64) (*Encounter, error) {
	var enc Encounter
	if err := s.db.WithContext(ctx).First(&enc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("encounter", strconv.FormatInt(id, 10))
		}
		return nil, database.FromDatabase(err, "encounter")
	}
	return &enc, nil
}
