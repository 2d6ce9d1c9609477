package auth

import (
	"errors"
	"net/http"

	"github.com/convo/convo-api/internal/domain/user"
	"github.com/convo/convo-api/internal/pkg/response"
	"github.com/convo/convo-api/internal/pkg/validator"
)

// Handler handles auth HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates auth handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register creates an account
// POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	resp, err := h.service.Register(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailAlreadyExists), errors.Is(err, user.ErrUsernameTaken):
			response.Conflict(w, err.Error())
		default:
			response.InternalError(w)
		}
		return
	}
	response.Created(w, resp)
}

// Login verifies credentials
// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(w, err.Error())
		} else {
			response.InternalError(w)
		}
		return
	}
	response.OK(w, resp)
}

// Refresh rotates tokens
// POST /auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenRevoked):
			response.Unauthorized(w, err.Error())
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, tokens)
}

// Logout revokes the refresh token
// POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			response.Unauthorized(w, err.Error())
		} else {
			response.InternalError(w)
		}
		return
	}
	response.OK(w, map[string]string{"message": "Logged out"})
}
