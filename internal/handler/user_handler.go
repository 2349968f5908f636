package handler

import (
	"encoding/json"
	"net/http"

	"github.com/OriginalByteMe/note-taking-backend/internal/domain"
	"github.com/OriginalByteMe/note-taking-backend/internal/middleware"
	"github.com/OriginalByteMe/note-taking-backend/internal/service"
	"github.com/OriginalByteMe/note-taking-backend/pkg/response"

	"github.com/go-playground/validator/v10"
)

type UserHandler struct {
	userService *service.UserService
	validate    *validator.Validate
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
		validate:    validator.New(),
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		response.NotFound(w, "User not found")
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	user, err := h.userService.UpdateUsername(r.Context(), userID, req.Username)
	if err != nil {
		if err == service.ErrUserNotFound {
			response.NotFound(w, "User not found")
			return
		}
		response.BadRequest(w, err.Error())
		return
	}

	response.Success(w, user)
}
