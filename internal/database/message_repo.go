package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/observer/chatwave/internal/domain"
)

// MessageRepository stores direct messages
type MessageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a direct message
func (r *MessageRepository) Create(ctx context.Context, msg *domain.DirectMessage) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO direct_messages (id, sender_id, recipient_id, body_text, attachment_id, media_kind, forwarded_from, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.SenderID, msg.RecipientID, msg.BodyText, msg.AttachmentID, string(msg.MediaKind), msg.ForwardedFrom, msg.CreatedAt)
	return err
}

// GetByID returns a single message
func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DirectMessage, error) {
	var m domain.DirectMessage
	var kind string
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, sender_id, recipient_id, body_text, attachment_id, media_kind, forwarded_from, deleted_for_everyone, created_at
		FROM direct_messages WHERE id = $1
	`, id).Scan(
		&m.ID, &m.SenderID, &m.RecipientID, &m.BodyText, &m.AttachmentID,
		&kind, &m.ForwardedFrom, &m.DeletedForEveryone, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	m.MediaKind = domain.MediaKind(kind)
	m.Redact()
	return &m, nil
}

// Conversation returns messages between userID and peerID, newest first,
// hiding those userID deleted for themself. Cursor pagination on created_at.
func (r *MessageRepository) Conversation(ctx context.Context, userID, peerID uuid.UUID, before *time.Time, limit int) ([]domain.DirectMessage, error) {
	if before == nil {
		far := time.Now().Add(time.Hour)
		before = &far
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT m.id, m.sender_id, m.recipient_id, m.body_text, m.attachment_id, m.media_kind,
		       m.forwarded_from, m.deleted_for_everyone, m.created_at,
		       u.username, u.display_name, u.avatar_url
		FROM direct_messages m
		JOIN users u ON u.id = m.sender_id
		WHERE ((m.sender_id = $1 AND m.recipient_id = $2) OR (m.sender_id = $2 AND m.recipient_id = $1))
		  AND m.created_at < $3
		  AND NOT EXISTS (
		      SELECT 1 FROM direct_message_deletions d
		      WHERE d.message_id = m.id AND d.user_id = $1
		  )
		ORDER BY m.created_at DESC
		LIMIT $4
	`, userID, peerID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.DirectMessage
	for rows.Next() {
		var m domain.DirectMessage
		var kind string
		var username string
		var displayName, avatarURL *string

		err := rows.Scan(
			&m.ID, &m.SenderID, &m.RecipientID, &m.BodyText, &m.AttachmentID, &kind,
			&m.ForwardedFrom, &m.DeletedForEveryone, &m.CreatedAt,
			&username, &displayName, &avatarURL,
		)
		if err != nil {
			return nil, err
		}
		m.MediaKind = domain.MediaKind(kind)
		m.Sender = &domain.PublicUser{
			ID:          m.SenderID,
			Username:    username,
			DisplayName: stringValue(displayName),
			AvatarURL:   stringValue(avatarURL),
		}
		m.Redact()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteForUser hides a message from userID only
func (r *MessageRepository) DeleteForUser(ctx context.Context, messageID, userID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO direct_message_deletions (message_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, messageID, userID)
	return err
}

// DeleteForEveryone blanks a message for both parties
func (r *MessageRepository) DeleteForEveryone(ctx context.Context, messageID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE direct_messages
		SET deleted_for_everyone = TRUE, body_text = '', attachment_id = NULL, media_kind = ''
		WHERE id = $1
	`, messageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
