package domain

import (
	"time"

	"github.com/google/uuid"
)

// MediaKind tags a message that carries an uploaded file
type MediaKind string

const (
	MediaKindNone  MediaKind = ""
	MediaKindImage MediaKind = "image"
	MediaKindVoice MediaKind = "voice"
	MediaKindFile  MediaKind = "file"
)

// ForwardPrefix is prepended to the body of a forwarded message
const ForwardPrefix = "Forwarded: "

// DirectMessage is a one-to-one chat message
type DirectMessage struct {
	ID                 uuid.UUID  `json:"id"`
	SenderID           uuid.UUID  `json:"sender_id"`
	RecipientID        uuid.UUID  `json:"recipient_id"`
	BodyText           string     `json:"body_text"`
	AttachmentID       *uuid.UUID `json:"attachment_id,omitempty"`
	MediaKind          MediaKind  `json:"media_kind,omitempty"`
	ForwardedFrom      *uuid.UUID `json:"forwarded_from,omitempty"`
	DeletedForEveryone bool       `json:"deleted_for_everyone"`
	CreatedAt          time.Time  `json:"created_at"`

	// Populated on fetch
	Sender    *PublicUser `json:"sender,omitempty"`
	Recipient *PublicUser `json:"recipient,omitempty"`
}

// Redact empties the content of a message deleted for everyone
func (m *DirectMessage) Redact() {
	if !m.DeletedForEveryone {
		return
	}
	m.BodyText = ""
	m.AttachmentID = nil
	m.MediaKind = MediaKindNone
}

// Peer returns the other party of the message relative to userID
func (m *DirectMessage) Peer(userID uuid.UUID) uuid.UUID {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// IsParticipant reports whether userID sent or received the message
func (m *DirectMessage) IsParticipant(userID uuid.UUID) bool {
	return m.SenderID == userID || m.RecipientID == userID
}
