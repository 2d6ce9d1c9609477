package chat

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/convo/convo-api/internal/domain/role"
	"github.com/convo/convo-api/internal/middleware"
	"github.com/convo/convo-api/internal/pkg/errorhandler"
	"github.com/convo/convo-api/internal/pkg/response"
	"github.com/convo/convo-api/internal/pkg/validator"
)

const maxAvatarSize = 5 << 20 // 5 MiB

// Handler handles chat HTTP requests
type Handler struct {
	service *Service
	hub     *Hub
}

// NewHandler creates chat handler
func NewHandler(service *Service, hub *Hub) *Handler {
	return &Handler{service: service, hub: hub}
}

// CreateConversation creates a conversation
// POST /conversations
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateConversationRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	conv, err := h.service.CreateConversation(r.Context(), userID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, conv)
}

// GetConversation returns one conversation
// GET /conversations/{conversationID}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, ok := h.parseID(w, r, "conversationID")
	if !ok {
		return
	}

	conv, err := h.service.GetConversation(r.Context(), userID, conversationID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, conv)
}

// ListConversations lists the user's conversations
// GET /conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.service.ListConversations(r.Context(), userID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "CONVERSATION_LIST_FAILED", "Failed to list conversations", err)
		return
	}
	response.OK(w, convs)
}

// Rename renames a conversation
// PUT /conversations/{conversationID}/name
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, ok := h.parseID(w, r, "conversationID")
	if !ok {
		return
	}

	var req RenameConversationRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.service.Rename(r.Context(), userID, conversationID, req.Name); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Conversation renamed"})
}

// UpdateAvatar replaces the conversation avatar
// PUT /conversations/{conversationID}/avatar
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, ok := h.parseID(w, r, "conversationID")
	if !ok {
		return
	}

	img, err := io.ReadAll(io.LimitReader(r.Body, maxAvatarSize+1))
	if err != nil || len(img) == 0 {
		response.BadRequest(w, "Invalid image payload")
		return
	}
	if len(img) > maxAvatarSize {
		response.BadRequest(w, "Image too large")
		return
	}

	url, err := h.service.UpdateAvatar(r.Context(), userID, conversationID, img)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]string{"avatar_url": url})
}

// AddMembers adds members to a conversation
// POST /conversations/{conversationID}/members
func (h *Handler) AddMembers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, ok := h.parseID(w, r, "conversationID")
	if !ok {
		return
	}

	var req AddMembersRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.service.AddMembers(r.Context(), userID, conversationID, req.MemberIDs); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Members added"})
}

// Join joins a public conversation
// POST /conversations/{conversationID}/join
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, ok := h.parseID(w, r, "conversationID")
	if !ok {
		return
	}

	if err := h.service.JoinConversation(r.Context(), userID, conversationID); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Joined conversation"})
}

// Leave leaves a conversation
// POST /conversations/{conversationID}/leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, ok := h.parseID(w, r, "conversationID")
	if !ok {
		return
	}

	if err := h.service.LeaveConversation(r.Context(), userID, conversationID); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Left conversation"})
}

// ListMembers lists a conversation's members
// GET /conversations/{conversationID}/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, ok := h.parseID(w, r, "conversationID")
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), userID, conversationID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, members)
}

// SendMessage posts a message
// POST /conversations/{conversationID}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, ok := h.parseID(w, r, "conversationID")
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	msg, err := h.service.SendMessage(r.Context(), userID, conversationID, req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, msg)
}

// ListMessages lists messages, newest first
// GET /conversations/{conversationID}/messages?limit=&before=
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, ok := h.parseID(w, r, "conversationID")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "Invalid before timestamp")
			return
		}
		before = &t
	}

	msgs, err := h.service.ListMessages(r.Context(), userID, conversationID, limit, before)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, msgs)
}

// DeleteMessage deletes or moderates a message
// DELETE /conversations/{conversationID}/messages/{messageID}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID, ok := h.parseID(w, r, "conversationID")
	if !ok {
		return
	}
	messageID, ok := h.parseID(w, r, "messageID")
	if !ok {
		return
	}

	if err := h.service.DeleteMessage(r.Context(), userID, conversationID, messageID); err != nil {
		h.writeError(w, err)
		return
	}
	response.NoContent(w)
}

// Socket upgrades to a WebSocket subscribed to the user's conversations
// GET /conversations/socket
func (h *Handler) Socket(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.service.ListConversations(r.Context(), userID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "CONVERSATION_LIST_FAILED", "Failed to list conversations", err)
		return
	}
	ids := make([]uuid.UUID, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}

	h.hub.ServeWS(w, r, userID, ids)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.BadRequest(w, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrMessageNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotMember),
		errors.Is(err, ErrMuted),
		errors.Is(err, ErrOwnerCannotLeave),
		errors.Is(err, ErrPrivateConversation):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrAlreadyMember):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrDirectMemberCount):
		response.BadRequest(w, err.Error())
	default:
		// Denials raised by the role gate carry their own mapping.
		role.WriteDenial(w, err)
	}
}
