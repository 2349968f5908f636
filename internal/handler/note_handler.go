package handler

import (
	"encoding/json"
	"net/http"

	"github.com/OriginalByteMe/note-taking-backend/internal/domain"
	"github.com/OriginalByteMe/note-taking-backend/internal/middleware"
	"github.com/OriginalByteMe/note-taking-backend/internal/service"
	"github.com/OriginalByteMe/note-taking-backend/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
}

func NewNoteHandler(service *service.NoteService) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	notes, err := h.service.List(r.Context(), userID)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	notes, err := h.service.ListShared(r.Context(), userID)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.BadRequest(w, "Query parameter q is required")
		return
	}

	userID := middleware.GetUserID(r)

	notes, err := h.service.Search(r.Context(), userID, query)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Get(r.Context(), userID, noteID)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	var req domain.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Update(r.Context(), userID, noteID, &req)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	var req domain.DeleteNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	if err := h.service.SoftDelete(r.Context(), userID, noteID, req.ExpectedVersion); err != nil {
		writeNoteError(w, err)
		return
	}

	response.Success(w, map[string]string{"message": "Note deleted successfully"})
}

func (h *NoteHandler) HardDelete(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	userID := middleware.GetUserID(r)

	if err := h.service.HardDelete(r.Context(), userID, noteID); err != nil {
		writeNoteError(w, err)
		return
	}

	response.Success(w, map[string]string{"message": "Note permanently deleted"})
}

func (h *NoteHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	userID := middleware.GetUserID(r)

	versions, err := h.service.ListVersions(r.Context(), userID, noteID)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	response.Success(w, versions)
}

func (h *NoteHandler) Revert(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	var req domain.RevertNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Revert(r.Context(), userID, noteID, req.TargetVersion)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	var req domain.ResolveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Resolve(r.Context(), userID, noteID, &req)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	response.Success(w, note)
}

// writeNoteError maps the service taxonomy onto HTTP. Conflicts carry their
// payload; lock timeouts and storage contention are retryable, not conflicts.
func writeNoteError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *service.ConflictError:
		response.JSON(w, http.StatusConflict, map[string]interface{}{
			"error":    "version_conflict",
			"conflict": e.Conflict,
		})
		return
	case *service.ResolveConflictError:
		response.JSON(w, http.StatusConflict, map[string]interface{}{
			"error":    "resolution_conflict",
			"conflict": e.Conflict,
		})
		return
	}

	switch err {
	case service.ErrNoteNotFound:
		response.NotFound(w, "Note not found")
	case service.ErrVersionNotFound:
		response.NotFound(w, "Version not found")
	case service.ErrForbidden:
		response.Forbidden(w, "Insufficient permission")
	case service.ErrLockTimeout, service.ErrStorageContention:
		response.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		response.InternalError(w, "Internal server error")
	}
}
