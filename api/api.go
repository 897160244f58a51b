package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/dictation/clinical"
	"github.com/kbukum/dictation/dictation"
	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/oneshot"
	"github.com/kbukum/dictation/server"
	"github.com/kbukum/dictation/server/middleware"
	"github.com/kbukum/dictation/session"
	"github.com/kbukum/dictation/transport"
)

// SessionServer runs a dictation session over an upgraded connection.
type SessionServer interface {
	Serve(ctx context.Context, hs transport.Handshake, req dictation.Request) error
}

// UploadProcessor transcribes an uploaded recording.
type UploadProcessor interface {
	Process(ctx context.Context, req oneshot.Request) (*oneshot.Result, error)
}

// NoteReader reads encounters and their notes.
type NoteReader interface {
	GetEncounter(ctx context.Context, id int64) (*clinical.Encounter, error)
	ListNotes(ctx context.Context, encounterID int64) ([]clinical.ClinicalNote, error)
}

// SessionLister exposes the local session registry.
type SessionLister interface {
	Count() int
	IDs() []string
	Directory() session.Directory
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Upgrader *transport.Upgrader
	Sessions SessionServer
	Uploads  UploadProcessor
	Notes    NoteReader
	Registry SessionLister
	Authn    middleware.IdentityAuthenticator
}

// Handler serves the dictation HTTP and WebSocket routes.
type Handler struct {
	deps Deps
	log  *logger.Logger
}

// New creates a Handler.
func New(deps Deps, log *logger.Logger) *Handler {
	return &Handler{deps: deps, log: log.WithComponent("api")}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/ws/dictation/:session_id", h.dictation)

	v1 := r.Group("/api/v1", middleware.Auth(h.deps.Authn))
	v1.POST("/transcriptions", h.transcribe)
	v1.GET("/encounters/:encounter_id/notes", h.listNotes)
	v1.GET("/sessions", h.sessions)
}

// dictation upgrades the request and hands it to the session orchestrator.
// The token travels as a query parameter because browsers cannot set
// headers on a WebSocket handshake.
func (h *Handler) dictation(c *gin.Context) {
	encounterID, err := parseID(c.Query("encounter_id"), "encounter_id")
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	noteType, err := clinical.ParseNoteType(c.Query("note_type"))
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("note_type", err.Error()))
		return
	}

	req := dictation.Request{
		SessionID:   c.Param("session_id"),
		Token:       c.Query("token"),
		EncounterID: encounterID,
		NoteType:    noteType,
	}
	hs := h.deps.Upgrader.Handshake(c.Writer, c.Request)
	if err := h.deps.Sessions.Serve(c.Request.Context(), hs, req); err != nil {
		h.log.WithSession(req.SessionID).Debug("Dictation session ended with error", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

type uploadResponse struct {
	Status     string `json:"status"`
	Transcript string `json:"transcript,omitempty"`
	NoteID     int64  `json:"note_id,omitempty"`
	Warning    string `json:"warning,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (h *Handler) transcribe(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	encounterID, err := parseID(c.Query("encounter_id"), "encounter_id")
	if err != nil {
		uploadError(c, err)
		return
	}
	noteType, err := clinical.ParseNoteType(c.Query("note_type"))
	if err != nil {
		uploadError(c, apperrors.InvalidInput("note_type", err.Error()))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		uploadError(c, apperrors.MissingField("file"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		uploadError(c, apperrors.Internal(err))
		return
	}
	defer f.Close() //nolint:errcheck

	res, err := h.deps.Uploads.Process(c.Request.Context(), oneshot.Request{
		EncounterID: encounterID,
		AuthorID:    identity.UserID,
		NoteType:    noteType,
		Filename:    fh.Filename,
		Audio:       f,
	})
	if err != nil {
		uploadError(c, err)
		return
	}
	c.JSON(http.StatusOK, uploadResponse{
		Status:     "success",
		Transcript: res.Transcript,
		NoteID:     res.NoteID,
		Warning:    res.Warning,
	})
}

// uploadError writes the upload endpoint's flat error body.
func uploadError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	c.JSON(appErr.HTTPStatus, uploadResponse{Status: "error", Message: appErr.Message})
}

func (h *Handler) listNotes(c *gin.Context) {
	encounterID, err := parseID(c.Param("encounter_id"), "encounter_id")
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.deps.Notes.GetEncounter(ctx, encounterID); err != nil {
		server.RespondWithError(c, err)
		return
	}
	notes, err := h.deps.Notes.ListNotes(ctx, encounterID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if notes == nil {
		notes = []clinical.ClinicalNote{}
	}
	server.RespondOKWithMeta(c, notes, &server.Meta{Total: len(notes)})
}

type sessionsResponse struct {
	Count    int                `json:"count"`
	IDs      []string           `json:"ids"`
	Presence []session.Presence `json:"presence,omitempty"`
}

func (h *Handler) sessions(c *gin.Context) {
	resp := sessionsResponse{Count: h.deps.Registry.Count(), IDs: h.deps.Registry.IDs()}
	if resp.IDs == nil {
		resp.IDs = []string{}
	}
	if dir := h.deps.Registry.Directory(); dir != nil {
		presence, err := dir.List(c.Request.Context())
		if err != nil {
			h.log.WithContext(c.Request.Context()).Warn("Presence lookup failed", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
		resp.Presence = presence
	}
	server.RespondOK(c, resp)
}

func parseID(raw, field string) (int64, error) {
	if raw == "" {
		return 0, apperrors.MissingField(field)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput(field, "must be a positive integer")
	}
	return id, nil
}
