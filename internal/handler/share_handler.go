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

type ShareHandler struct {
	service  *service.ShareService
	validate *validator.Validate
}

func NewShareHandler(service *service.ShareService) *ShareHandler {
	return &ShareHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]

	var req domain.CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	share, err := h.service.Create(r.Context(), userID, noteID, &req)
	if err != nil {
		writeShareError(w, err)
		return
	}

	response.Created(w, share)
}

func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r)

	shares, err := h.service.List(r.Context(), userID, noteID)
	if err != nil {
		writeShareError(w, err)
		return
	}

	response.Success(w, shares)
}

func (h *ShareHandler) Update(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	noteID := vars["id"]
	targetUserID := vars["userID"]

	var req domain.UpdateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	share, err := h.service.Update(r.Context(), userID, noteID, targetUserID, &req)
	if err != nil {
		writeShareError(w, err)
		return
	}

	response.Success(w, share)
}

func (h *ShareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	noteID := vars["id"]
	targetUserID := vars["userID"]

	userID := middleware.GetUserID(r)

	if err := h.service.Delete(r.Context(), userID, noteID, targetUserID); err != nil {
		writeShareError(w, err)
		return
	}

	response.Success(w, map[string]string{"message": "Share revoked"})
}

func writeShareError(w http.ResponseWriter, err error) {
	switch err {
	case service.ErrNoteNotFound:
		response.NotFound(w, "Note not found")
	case service.ErrShareNotFound:
		response.NotFound(w, "Share not found")
	case service.ErrUserNotFound:
		response.NotFound(w, "User not found")
	case service.ErrCannotShareWithSelf:
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, "Internal server error")
	}
}
