package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AttachmentStatus represents the upload status
type AttachmentStatus string

const (
	AttachmentStatusUploading AttachmentStatus = "uploading"
	AttachmentStatusReady     AttachmentStatus = "ready"
	AttachmentStatusError     AttachmentStatus = "error"
)

// Attachment is a file uploaded to object storage ahead of the message that references it
type Attachment struct {
	ID          uuid.UUID        `json:"id"`
	UploaderID  uuid.UUID        `json:"uploader_id"`
	Bucket      string           `json:"bucket"`
	ObjectKey   string           `json:"object_key"`
	Filename    string           `json:"filename"`
	MimeType    string           `json:"mime_type"`
	SizeBytes   int64            `json:"size_bytes"`
	SHA256      *string          `json:"sha256,omitempty"`
	Status      AttachmentStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// MediaKind derives the message media kind from the MIME type
func (a *Attachment) MediaKind() MediaKind {
	switch {
	case strings.HasPrefix(a.MimeType, "audio/"):
		return MediaKindVoice
	case strings.HasPrefix(a.MimeType, "image/"):
		return MediaKindImage
	default:
		return MediaKindFile
	}
}

// UploadInitRequest is the request to initialize an upload
type UploadInitRequest struct {
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// UploadInitResponse is the response from upload init
type UploadInitResponse struct {
	AttachmentID    uuid.UUID         `json:"attachment_id"`
	ObjectKey       string            `json:"object_key"`
	PresignedURL    string            `json:"presigned_url"`
	RequiredHeaders map[string]string `json:"required_headers,omitempty"`
}

// UploadCompleteRequest is the request to finalize an upload
type UploadCompleteRequest struct {
	AttachmentID string `json:"attachment_id"`
	SHA256       string `json:"sha256,omitempty"`
}

// AttachmentDownloadResponse contains the download URL
type AttachmentDownloadResponse struct {
	AttachmentID uuid.UUID `json:"attachment_id"`
	Filename     string    `json:"filename"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	DownloadURL  string    `json:"download_url"`
}
