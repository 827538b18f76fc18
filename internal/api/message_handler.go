package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/observer/chatwave/internal/auth"
	"github.com/observer/chatwave/internal/domain"
	"github.com/observer/chatwave/internal/realtime"
)

// MessageHandler handles direct messages between two users
type MessageHandler struct {
	messages    MessageStore
	users       UserStore
	attachments AttachmentStore
	notifier    realtime.Notifier
	logger      *slog.Logger
}

func NewMessageHandler(
	messages MessageStore,
	users UserStore,
	attachments AttachmentStore,
	notifier realtime.Notifier,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages:    messages,
		users:       users,
		attachments: attachments,
		notifier:    notifier,
		logger:      logger.With("component", "message_handler"),
	}
}

// SendMessageRequest is the body of POST /messages
type SendMessageRequest struct {
	RecipientID  uuid.UUID  `json:"recipient_id"`
	BodyText     string     `json:"body_text"`
	AttachmentID *uuid.UUID `json:"attachment_id,omitempty"`
}

// DeletedMessage is the body of a message-deleted event
type DeletedMessage struct {
	MessageID uuid.UUID `json:"message_id"`
	DeletedBy uuid.UUID `json:"deleted_by"`
}

// Send godoc
//
//	@Summary		Send a direct message
//	@Description	Persist a message and deliver it to the recipient if connected
//	@Tags			messages
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		SendMessageRequest	true	"Message"
//	@Success		201		{object}	domain.DirectMessage
//	@Failure		400		{object}	map[string]string
//	@Failure		404		{object}	map[string]string	"Recipient not found"
//	@Router			/messages [post]
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg := &domain.DirectMessage{
		SenderID:     userID,
		RecipientID:  req.RecipientID,
		BodyText:     req.BodyText,
		AttachmentID: req.AttachmentID,
	}
	h.deliver(w, r, msg, http.StatusCreated)
}

// History godoc
//
//	@Summary		Conversation history
//	@Description	Messages between the caller and a peer, newest first. Messages the caller deleted for themself are omitted.
//	@Tags			messages
//	@Produce		json
//	@Security		BearerAuth
//	@Param			peerID	path		string	true	"Peer user ID"
//	@Param			before	query		string	false	"RFC 3339 cursor"
//	@Param			limit	query		int		false	"Page size (default 50, max 100)"
//	@Success		200		{object}	map[string]interface{}
//	@Router			/conversations/{peerID}/messages [get]
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	peerID, err := uuid.Parse(r.PathValue("peerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid peer id")
		return
	}

	limit, before, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid before cursor")
		return
	}

	messages, err := h.messages.Conversation(r.Context(), userID, peerID, before, limit)
	if err != nil {
		h.logger.Error("load conversation failed", "error", err, "user_id", userID, "peer_id", peerID)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if messages == nil {
		messages = []domain.DirectMessage{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

// Delete godoc
//
//	@Summary		Delete a message
//	@Description	scope=me hides the message for the caller. scope=everyone (sender only) blanks it for both parties.
//	@Tags			messages
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"Message ID"
//	@Param			scope	query		string	false	"me (default) or everyone"
//	@Success		200		{object}	map[string]string
//	@Failure		403		{object}	map[string]string
//	@Failure		404		{object}	map[string]string
//	@Router			/messages/{id} [delete]
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	msg, err := h.messages.GetByID(r.Context(), messageID)
	if err != nil {
		writeDomainError(w, err, "failed to load message")
		return
	}
	// Non-participants get the same answer as for a missing message
	if !msg.IsParticipant(userID) {
		writeError(w, http.StatusNotFound, domain.ErrMessageNotFound.Error())
		return
	}

	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "me":
		if err := h.messages.DeleteForUser(r.Context(), messageID, userID); err != nil {
			h.logger.Error("delete for user failed", "error", err, "message_id", messageID)
			writeError(w, http.StatusInternalServerError, "failed to delete message")
			return
		}
	case "everyone":
		if msg.SenderID != userID {
			writeError(w, http.StatusForbidden, domain.ErrNotSender.Error())
			return
		}
		if err := h.messages.DeleteForEveryone(r.Context(), messageID); err != nil {
			writeDomainError(w, err, "failed to delete message")
			return
		}
		h.notifyDirect(r.Context(), realtime.KindMessageDeleted, userID, msg.RecipientID,
			DeletedMessage{MessageID: messageID, DeletedBy: userID})
	default:
		writeError(w, http.StatusBadRequest, "scope must be me or everyone")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Forward godoc
//
//	@Summary		Forward a message
//	@Description	Send a copy of a visible message to another user, prefixed "Forwarded: "
//	@Tags			messages
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string							true	"Message ID"
//	@Param			request	body		object{recipient_id=string}	true	"Target"
//	@Success		201		{object}	domain.DirectMessage
//	@Failure		404		{object}	map[string]string
//	@Router			/messages/{id}/forward [post]
func (h *MessageHandler) Forward(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	var req struct {
		RecipientID uuid.UUID `json:"recipient_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	original, err := h.messages.GetByID(r.Context(), messageID)
	if err != nil {
		writeDomainError(w, err, "failed to load message")
		return
	}
	if !original.IsParticipant(userID) || original.DeletedForEveryone {
		writeError(w, http.StatusNotFound, domain.ErrMessageNotFound.Error())
		return
	}

	msg := &domain.DirectMessage{
		SenderID:      userID,
		RecipientID:   req.RecipientID,
		BodyText:      domain.ForwardPrefix + original.BodyText,
		AttachmentID:  original.AttachmentID,
		MediaKind:     original.MediaKind,
		ForwardedFrom: &original.ID,
	}
	h.deliver(w, r, msg, http.StatusCreated)
}

// deliver validates, persists and announces msg, then writes it back.
// Persistence comes first: a notify failure is logged and the message stands.
func (h *MessageHandler) deliver(w http.ResponseWriter, r *http.Request, msg *domain.DirectMessage, status int) {
	ctx := r.Context()

	if msg.RecipientID == uuid.Nil || msg.RecipientID == msg.SenderID {
		writeError(w, http.StatusBadRequest, "invalid recipient")
		return
	}
	if _, err := h.users.GetByID(ctx, msg.RecipientID); err != nil {
		writeDomainError(w, err, "failed to load recipient")
		return
	}

	// Forwards already carry a media kind from the original
	if msg.AttachmentID != nil && msg.MediaKind == domain.MediaKindNone {
		kind, err := attachmentKind(ctx, h.attachments, msg.SenderID, msg.AttachmentID)
		if err != nil {
			writeDomainError(w, err, "failed to load attachment")
			return
		}
		msg.MediaKind = kind
	}

	if err := validateBody(msg.BodyText, msg.AttachmentID != nil); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg.ID = uuid.New()
	msg.CreatedAt = time.Now().UTC()
	if err := h.messages.Create(ctx, msg); err != nil {
		h.logger.Error("create message failed", "error", err, "sender_id", msg.SenderID)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	h.notifyDirect(ctx, realtime.KindDirectChat, msg.SenderID, msg.RecipientID, msg)
	writeJSON(w, status, msg)
}

func (h *MessageHandler) notifyDirect(ctx context.Context, kind realtime.Kind, sender, target uuid.UUID, body interface{}) {
	if err := h.notifier.NotifyDirect(ctx, kind, sender, target, body); err != nil {
		h.logger.Warn("notify failed", "error", err, "kind", kind, "target_id", target)
	}
}

// attachmentKind resolves an attachment the sender uploaded into a media kind
func attachmentKind(ctx context.Context, attachments AttachmentStore, senderID uuid.UUID, attachmentID *uuid.UUID) (domain.MediaKind, error) {
	if attachmentID == nil {
		return domain.MediaKindNone, nil
	}
	att, err := attachments.GetByID(ctx, *attachmentID)
	if err != nil {
		return domain.MediaKindNone, err
	}
	if att.UploaderID != senderID {
		return domain.MediaKindNone, domain.ErrAttachmentNotFound
	}
	if att.Status != domain.AttachmentStatusReady {
		return domain.MediaKindNone, domain.ErrAttachmentNotReady
	}
	return att.MediaKind(), nil
}
