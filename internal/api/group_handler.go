package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/observer/chatwave/internal/auth"
	"github.com/observer/chatwave/internal/domain"
	"github.com/observer/chatwave/internal/realtime"
)

// GroupHandler handles groups, their membership and their messages
type GroupHandler struct {
	groups      GroupStore
	users       UserStore
	attachments AttachmentStore
	notifier    realtime.Notifier
	logger      *slog.Logger
}

func NewGroupHandler(
	groups GroupStore,
	users UserStore,
	attachments AttachmentStore,
	notifier realtime.Notifier,
	logger *slog.Logger,
) *GroupHandler {
	return &GroupHandler{
		groups:      groups,
		users:       users,
		attachments: attachments,
		notifier:    notifier,
		logger:      logger.With("component", "group_handler"),
	}
}

// CreateGroupRequest is the body of POST /groups
type CreateGroupRequest struct {
	Title     string      `json:"title"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// SendGroupMessageRequest is the body of POST /groups/{id}/messages
type SendGroupMessageRequest struct {
	BodyText     string     `json:"body_text"`
	AttachmentID *uuid.UUID `json:"attachment_id,omitempty"`
	// Echo also delivers the message to the sender's own connection
	Echo bool `json:"echo"`
}

// MembershipChange is the body of member joined/left events
type MembershipChange struct {
	GroupID uuid.UUID `json:"group_id"`
	UserID  uuid.UUID `json:"user_id"`
	ActorID uuid.UUID `json:"actor_id"`
}

// Create godoc
//
//	@Summary		Create a group
//	@Description	The caller becomes the group's admin
//	@Tags			groups
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateGroupRequest	true	"Group"
//	@Success		201		{object}	domain.Group
//	@Failure		400		{object}	map[string]string
//	@Router			/groups [post]
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > 100 {
		writeError(w, http.StatusBadRequest, "title must be 1-100 characters")
		return
	}

	// Creator first, duplicates dropped
	memberIDs := []uuid.UUID{userID}
	seen := map[uuid.UUID]bool{userID: true}
	for _, id := range req.MemberIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		memberIDs = append(memberIDs, id)
	}
	if len(memberIDs) > domain.MaxGroupMembers {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("a group holds at most %d members", domain.MaxGroupMembers))
		return
	}

	for _, id := range memberIDs[1:] {
		if _, err := h.users.GetByID(r.Context(), id); err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				writeError(w, http.StatusBadRequest, "unknown member "+id.String())
				return
			}
			h.logger.Error("create group: load member", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create group")
			return
		}
	}

	now := time.Now().UTC()
	group := &domain.Group{
		ID:        uuid.New(),
		Title:     req.Title,
		CreatedBy: &userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.groups.Create(r.Context(), group, memberIDs); err != nil {
		h.logger.Error("create group failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}

	created, err := h.groups.GetByID(r.Context(), group.ID)
	if err != nil {
		h.logger.Error("reload group failed", "error", err, "group_id", group.ID)
		created = group
	}
	writeJSON(w, http.StatusCreated, created)
}

// List godoc
//
//	@Summary		List my groups
//	@Tags			groups
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	map[string]interface{}
//	@Router			/groups [get]
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	groups, err := h.groups.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("list groups failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	if groups == nil {
		groups = []domain.Group{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
		"count":  len(groups),
	})
}

// Get godoc
//
//	@Summary		Get a group
//	@Tags			groups
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Group ID"
//	@Success		200	{object}	domain.Group
//	@Failure		403	{object}	map[string]string
//	@Failure		404	{object}	map[string]string
//	@Router			/groups/{id} [get]
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := h.memberRequest(w, r)
	if !ok {
		return
	}

	if _, err := h.groups.GetMemberRole(r.Context(), groupID, userID); err != nil {
		h.writeErr(w, err, "failed to load group", userID)
		return
	}

	group, err := h.groups.GetByID(r.Context(), groupID)
	if err != nil {
		h.writeErr(w, err, "failed to load group", userID)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

// AddMember godoc
//
//	@Summary		Add a member
//	@Description	Admins only
//	@Tags			groups
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string					true	"Group ID"
//	@Param			request	body		object{user_id=string}	true	"User to add"
//	@Success		201		{object}	map[string]string
//	@Failure		403		{object}	map[string]string
//	@Failure		409		{object}	map[string]string
//	@Router			/groups/{id}/members [post]
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := h.memberRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	if err := h.requireAdmin(ctx, groupID, userID); err != nil {
		h.writeErr(w, err, "failed to add member", userID)
		return
	}
	if _, err := h.users.GetByID(ctx, req.UserID); err != nil {
		h.writeErr(w, err, "failed to add member", userID)
		return
	}

	if err := h.groups.AddMember(ctx, groupID, req.UserID, domain.MemberRoleMember); err != nil {
		h.writeErr(w, err, "failed to add member", userID)
		return
	}

	h.notifyGroup(ctx, realtime.KindGroupMemberJoined, userID, groupID,
		MembershipChange{GroupID: groupID, UserID: req.UserID, ActorID: userID},
		realtime.GroupOptions{Affected: req.UserID})
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// RemoveMember godoc
//
//	@Summary		Remove a member
//	@Description	Admins may remove anyone; members may remove themselves. The last admin cannot leave while others remain.
//	@Tags			groups
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"Group ID"
//	@Param			userID	path		string	true	"Member ID"
//	@Success		200		{object}	map[string]string
//	@Failure		403		{object}	map[string]string
//	@Failure		409		{object}	map[string]string
//	@Router			/groups/{id}/members/{userID} [delete]
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := h.memberRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	targetID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if targetID != userID {
		if err := h.requireAdmin(ctx, groupID, userID); err != nil {
			h.writeErr(w, err, "failed to remove member", userID)
			return
		}
	}

	targetRole, err := h.groups.GetMemberRole(ctx, groupID, targetID)
	if err != nil {
		h.writeErr(w, err, "failed to remove member", userID)
		return
	}
	if targetRole == domain.MemberRoleAdmin {
		total, admins, err := h.groups.CountMembers(ctx, groupID)
		if err != nil {
			h.writeErr(w, err, "failed to remove member", userID)
			return
		}
		if admins <= 1 && total > 1 {
			writeError(w, http.StatusConflict, domain.ErrCannotRemoveMe.Error())
			return
		}
	}

	if err := h.groups.RemoveMember(ctx, groupID, targetID); err != nil {
		h.writeErr(w, err, "failed to remove member", userID)
		return
	}

	// targetID is no longer a member, so it is named as affected to still
	// receive the event.
	h.notifyGroup(ctx, realtime.KindGroupMemberLeft, userID, groupID,
		MembershipChange{GroupID: groupID, UserID: targetID, ActorID: userID},
		realtime.GroupOptions{Affected: targetID})
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Messages godoc
//
//	@Summary		Group message history
//	@Tags			groups
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"Group ID"
//	@Param			before	query		string	false	"RFC 3339 cursor"
//	@Param			limit	query		int		false	"Page size (default 50, max 100)"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		403		{object}	map[string]string
//	@Router			/groups/{id}/messages [get]
func (h *GroupHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := h.memberRequest(w, r)
	if !ok {
		return
	}

	limit, before, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid before cursor")
		return
	}

	if _, err := h.groups.GetMemberRole(r.Context(), groupID, userID); err != nil {
		h.writeErr(w, err, "failed to load messages", userID)
		return
	}

	messages, err := h.groups.Messages(r.Context(), groupID, before, limit)
	if err != nil {
		h.writeErr(w, err, "failed to load messages", userID)
		return
	}
	if messages == nil {
		messages = []domain.GroupMessage{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

// SendMessage godoc
//
//	@Summary		Send a group message
//	@Description	Persist the message and deliver it to every connected member. echo=true also delivers to the sender.
//	@Tags			groups
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string					true	"Group ID"
//	@Param			request	body		SendGroupMessageRequest	true	"Message"
//	@Success		201		{object}	domain.GroupMessage
//	@Failure		400		{object}	map[string]string
//	@Failure		403		{object}	map[string]string
//	@Router			/groups/{id}/messages [post]
func (h *GroupHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := h.memberRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req SendGroupMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.groups.GetMemberRole(ctx, groupID, userID); err != nil {
		h.writeErr(w, err, "failed to send message", userID)
		return
	}

	kind, err := attachmentKind(ctx, h.attachments, userID, req.AttachmentID)
	if err != nil {
		h.writeErr(w, err, "failed to send message", userID)
		return
	}
	if err := validateBody(req.BodyText, req.AttachmentID != nil); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := &domain.GroupMessage{
		ID:           uuid.New(),
		GroupID:      groupID,
		SenderID:     &userID,
		BodyText:     req.BodyText,
		AttachmentID: req.AttachmentID,
		MediaKind:    kind,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.groups.CreateMessage(ctx, msg); err != nil {
		h.writeErr(w, err, "failed to send message", userID)
		return
	}

	h.notifyGroup(ctx, realtime.KindGroupChat, userID, groupID, msg, realtime.GroupOptions{IncludeSender: req.Echo})
	writeJSON(w, http.StatusCreated, msg)
}

// memberRequest reads the caller and the {id} path value
func (h *GroupHandler) memberRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, groupID, true
}

func (h *GroupHandler) requireAdmin(ctx context.Context, groupID, userID uuid.UUID) error {
	role, err := h.groups.GetMemberRole(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if role != domain.MemberRoleAdmin {
		return domain.ErrNotGroupAdmin
	}
	return nil
}

func (h *GroupHandler) notifyGroup(ctx context.Context, kind realtime.Kind, sender, groupID uuid.UUID, body interface{}, opts realtime.GroupOptions) {
	if err := h.notifier.NotifyGroup(ctx, kind, sender, groupID, body, opts); err != nil {
		h.logger.Warn("notify failed", "error", err, "kind", kind, "group_id", groupID)
	}
}

func (h *GroupHandler) writeErr(w http.ResponseWriter, err error, fallback string, userID uuid.UUID) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error(fallback, "error", err, "user_id", userID)
	}
	writeDomainError(w, err, fallback)
}
