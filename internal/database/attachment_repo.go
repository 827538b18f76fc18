package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/observer/chatwave/internal/domain"
)

// AttachmentRepository tracks uploaded media
type AttachmentRepository struct {
	db *DB
}

func NewAttachmentRepository(db *DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create creates a new attachment record in uploading status
func (r *AttachmentRepository) Create(ctx context.Context, att *domain.Attachment) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO attachments (id, uploader_id, bucket, object_key, filename, mime_type, size_bytes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		att.ID, att.UploaderID, att.Bucket, att.ObjectKey,
		att.Filename, att.MimeType, att.SizeBytes, att.Status, att.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

// GetByID retrieves an attachment by ID
func (r *AttachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	var att domain.Attachment
	var status string
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, uploader_id, bucket, object_key, filename, mime_type, size_bytes, sha256, status, created_at, completed_at
		FROM attachments
		WHERE id = $1
	`, id).Scan(
		&att.ID, &att.UploaderID, &att.Bucket, &att.ObjectKey,
		&att.Filename, &att.MimeType, &att.SizeBytes, &att.SHA256, &status, &att.CreatedAt, &att.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	att.Status = domain.AttachmentStatus(status)
	return &att, nil
}

// MarkReady marks an attachment as ready after successful upload
func (r *AttachmentRepository) MarkReady(ctx context.Context, id uuid.UUID, sha256 string) error {
	var checksum *string
	if sha256 != "" {
		checksum = &sha256
	}
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE attachments
		SET status = $1, sha256 = $2, completed_at = $3
		WHERE id = $4
	`, domain.AttachmentStatusReady, checksum, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark attachment ready: %w", err)
	}
	return nil
}

// MarkError marks an attachment as failed
func (r *AttachmentRepository) MarkError(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE attachments SET status = $1 WHERE id = $2
	`, domain.AttachmentStatusError, id)
	if err != nil {
		return fmt.Errorf("failed to mark attachment error: %w", err)
	}
	return nil
}

// CanAccess reports whether userID uploaded the attachment or can see a
// message that carries it
func (r *AttachmentRepository) CanAccess(ctx context.Context, attachmentID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM attachments WHERE id = $1 AND uploader_id = $2)
		    OR EXISTS(
		        SELECT 1 FROM direct_messages
		        WHERE attachment_id = $1 AND (sender_id = $2 OR recipient_id = $2)
		    )
		    OR EXISTS(
		        SELECT 1 FROM group_messages gm
		        JOIN group_members m ON m.group_id = gm.group_id
		        WHERE gm.attachment_id = $1 AND m.user_id = $2
		    )
	`, attachmentID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check attachment access: %w", err)
	}
	return ok, nil
}
