package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/observer/chatwave/internal/auth"
	"github.com/observer/chatwave/internal/domain"
	"github.com/observer/chatwave/internal/storage"
)

const (
	uploadURLExpiry   = 15 * time.Minute
	downloadURLExpiry = time.Hour
)

// allowedMimePrefixes lists the accepted upload types. Entries ending in "/"
// admit a whole family.
var allowedMimePrefixes = []string{
	"image/", "audio/", "video/",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"text/plain",
}

// UploadHandler issues presigned URLs for attachments. Bytes go straight
// between the client and object storage.
type UploadHandler struct {
	attachments    AttachmentStore
	blobs          BlobStore
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewUploadHandler(attachments AttachmentStore, blobs BlobStore, maxUploadBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		attachments:    attachments,
		blobs:          blobs,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("component", "upload_handler"),
	}
}

// InitUpload godoc
//
//	@Summary		Initialize file upload
//	@Description	Request a presigned URL for uploading a file to object storage
//	@Tags			uploads
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		domain.UploadInitRequest	true	"Upload initialization request"
//	@Success		200		{object}	domain.UploadInitResponse	"Presigned upload URL generated"
//	@Failure		400		{object}	map[string]string	"Invalid input"
//	@Failure		401		{object}	map[string]string	"Unauthorized"
//	@Router			/uploads/init [post]
func (h *UploadHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.UploadInitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Filename == "" || req.MimeType == "" || req.SizeBytes <= 0 {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if req.SizeBytes > h.maxUploadBytes {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file too large (max %d bytes)", h.maxUploadBytes))
		return
	}
	if !mimeAllowed(req.MimeType) {
		writeError(w, http.StatusBadRequest, "file type not allowed")
		return
	}

	attachmentID := uuid.New()
	objectKey := storage.ObjectKey(userID, attachmentID, req.Filename)

	attachment := &domain.Attachment{
		ID:         attachmentID,
		UploaderID: userID,
		Bucket:     h.blobs.Bucket(),
		ObjectKey:  objectKey,
		Filename:   req.Filename,
		MimeType:   req.MimeType,
		SizeBytes:  req.SizeBytes,
		Status:     domain.AttachmentStatusUploading,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.attachments.Create(ctx, attachment); err != nil {
		h.logger.Error("create attachment failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to create attachment record")
		return
	}

	presignedURL, err := h.blobs.PresignPut(ctx, objectKey, req.MimeType, uploadURLExpiry)
	if err != nil {
		h.logger.Error("presign put failed", "error", err, "object_key", objectKey)
		writeError(w, http.StatusInternalServerError, "failed to generate upload URL")
		return
	}

	writeJSON(w, http.StatusOK, domain.UploadInitResponse{
		AttachmentID: attachmentID,
		ObjectKey:    objectKey,
		PresignedURL: presignedURL,
		RequiredHeaders: map[string]string{
			"Content-Type": req.MimeType,
		},
	})
}

// CompleteUpload godoc
//
//	@Summary		Complete file upload
//	@Description	Confirm the object exists in storage and mark the attachment ready
//	@Tags			uploads
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		domain.UploadCompleteRequest	true	"Upload completion request"
//	@Success		200		{object}	map[string]string	"Upload completed"
//	@Failure		400		{object}	map[string]string	"Invalid input"
//	@Failure		404		{object}	map[string]string	"Attachment not found"
//	@Router			/uploads/complete [post]
func (h *UploadHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.UploadCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	attachmentID, err := uuid.Parse(req.AttachmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "attachment_id required")
		return
	}

	attachment, err := h.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		writeDomainError(w, err, "failed to load attachment")
		return
	}
	// Someone else's upload looks the same as a missing one
	if attachment.UploaderID != userID {
		writeError(w, http.StatusNotFound, domain.ErrAttachmentNotFound.Error())
		return
	}
	if attachment.Status == domain.AttachmentStatusReady {
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed", "attachment_id": attachmentID.String()})
		return
	}

	info, err := h.blobs.Stat(ctx, attachment.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusBadRequest, "object not uploaded yet")
			return
		}
		h.logger.Error("stat object failed", "error", err, "object_key", attachment.ObjectKey)
		writeError(w, http.StatusInternalServerError, "failed to verify upload")
		return
	}
	if info.Size > h.maxUploadBytes {
		if err := h.attachments.MarkError(ctx, attachmentID); err != nil {
			h.logger.Error("mark attachment error failed", "error", err, "attachment_id", attachmentID)
		}
		if err := h.blobs.Delete(ctx, attachment.ObjectKey); err != nil {
			h.logger.Warn("delete oversize object failed", "error", err, "object_key", attachment.ObjectKey)
		}
		writeError(w, http.StatusBadRequest, "uploaded object exceeds size limit")
		return
	}

	if err := h.attachments.MarkReady(ctx, attachmentID, req.SHA256); err != nil {
		h.logger.Error("mark attachment ready failed", "error", err, "attachment_id", attachmentID)
		writeError(w, http.StatusInternalServerError, "failed to mark attachment ready")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "completed",
		"attachment_id": attachmentID.String(),
	})
}

// GetAttachmentURL godoc
//
//	@Summary		Get file download URL
//	@Description	Presigned download URL for an attachment the caller uploaded or received
//	@Tags			attachments
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Attachment ID"
//	@Success		200	{object}	domain.AttachmentDownloadResponse	"Download URL generated"
//	@Failure		404	{object}	map[string]string	"Attachment not found"
//	@Router			/attachments/{id}/url [get]
func (h *UploadHandler) GetAttachmentURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	attachmentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	attachment, err := h.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		writeDomainError(w, err, "failed to load attachment")
		return
	}

	allowed, err := h.attachments.CanAccess(ctx, attachmentID, userID)
	if err != nil {
		h.logger.Error("attachment access check failed", "error", err, "attachment_id", attachmentID)
		writeError(w, http.StatusInternalServerError, "failed to verify access")
		return
	}
	if !allowed {
		writeError(w, http.StatusNotFound, domain.ErrAttachmentNotFound.Error())
		return
	}
	if attachment.Status != domain.AttachmentStatusReady {
		writeError(w, http.StatusBadRequest, domain.ErrAttachmentNotReady.Error())
		return
	}

	downloadURL, err := h.blobs.PresignGet(ctx, attachment.ObjectKey, downloadURLExpiry)
	if err != nil {
		h.logger.Error("presign get failed", "error", err, "object_key", attachment.ObjectKey)
		writeError(w, http.StatusInternalServerError, "failed to generate download URL")
		return
	}

	writeJSON(w, http.StatusOK, domain.AttachmentDownloadResponse{
		AttachmentID: attachment.ID,
		Filename:     attachment.Filename,
		MimeType:     attachment.MimeType,
		SizeBytes:    attachment.SizeBytes,
		DownloadURL:  downloadURL,
	})
}

func mimeAllowed(mimeType string) bool {
	for _, prefix := range allowedMimePrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
